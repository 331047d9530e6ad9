package rescache

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/pica/regs"
)

func TestNullResourcesRefCount(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	openDev, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	n := NewNullResources(openDev.Device)
	if n.View() != nil {
		t.Fatal("view exists before Acquire")
	}
	if err := n.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := n.Acquire(); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if n.View() == nil || n.CubeView() == nil || n.ShadowView() == nil || n.StorageView() == nil || n.Sampler() == nil {
		t.Fatal("resources missing after Acquire")
	}
	n.Release()
	if n.View() == nil {
		t.Error("resources destroyed while still referenced")
	}
	n.Release()
	if n.View() != nil || n.Sampler() != nil {
		t.Error("resources alive after last Release")
	}
	n.Release()
}

func TestTextureInfoFromConfig(t *testing.T) {
	var r regs.Regs
	r[regs.RegTex0Size] = 64 | 128<<16
	r[regs.RegTex0Address] = 0x100
	r[regs.RegTex0Format] = 3
	info := TextureInfoFromConfig(r.Texturing().Units()[0].Config)
	want := TextureInfo{PhysicalAddress: 0x800, Width: 128, Height: 64, Format: 3}
	if info != want {
		t.Errorf("TextureInfoFromConfig() = %+v, want %+v", info, want)
	}
}
