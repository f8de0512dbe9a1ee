package colormap

import (
	"image/color"
	"testing"
)

func TestSeuratColormapEndpoints(t *testing.T) {
	t.Parallel()

	c0 := color.NRGBAModel.Convert(Seurat.At(0)).(color.NRGBA)
	if c0 != (color.NRGBA{R: 211, G: 211, B: 211, A: 255}) {
		t.Fatalf("unexpected Seurat.At(0): %#v", c0)
	}

	c1 := color.NRGBAModel.Convert(Seurat.At(1)).(color.NRGBA)
	if c1 != (color.NRGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("unexpected Seurat.At(1): %#v", c1)
	}
}

func TestCategoricalWraps(t *testing.T) {
	t.Parallel()

	if Categorical.AtIndex(0) != Categorical.AtIndex(20) {
		t.Fatalf("expected AtIndex to wrap at 20 colors")
	}
	if Categorical.At(1.0) != Categorical.AtIndex(19) {
		t.Fatalf("expected At(1) to clamp to the last color")
	}
}

func TestLookupAndRegister(t *testing.T) {
	p, ok := Lookup("tricycle")
	if !ok || p.Len() != 8 {
		t.Fatalf("expected built-in tricycle palette with 8 stops")
	}

	if _, err := Register("mono", []string{"#000000", "#FFFFFF"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := Lookup("mono")
	if !ok {
		t.Fatal("expected registered palette to be found")
	}
	if hex := got.HexStops(); hex[0] != "#000000" || hex[1] != "#ffffff" {
		t.Fatalf("unexpected stops: %v", hex)
	}

	if _, err := Register("broken", []string{"#000000"}); err == nil {
		t.Fatal("expected error registering a single-color palette")
	}
	if _, ok := Lookup("broken"); ok {
		t.Fatal("failed registration must not add a palette")
	}
}

func TestCategoricalIndexMatchesAtIndex(t *testing.T) {
	for i := 0; i < 25; i++ {
		if Categorical.AtIndex(i) != Categorical.Index(i) {
			t.Fatalf("index %d: AtIndex and Index disagree", i)
		}
	}
}
