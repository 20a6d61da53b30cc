package gameconfig

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const fixture = `{
  "gameName": "Frontier Extraction",
  "modelFile": "FrontierModel_v20250101_000000_640.onnx",
  "overlay": {"opacity": 0.8, "hotkey": "F6"},
  "labels": [
    {"name": "enemy", "description": "hostile player"},
    {"name": "ammo", "description": ""}
  ],
  "primaryLabels": ["enemy"],
  "secondaryLabels": ["ammo"],
  "tertiaryLabels": []
}`

func loadFixture(t *testing.T) (*Document, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game_config.json")
	if err := os.WriteFile(path, []byte(fixture), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return doc, path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "game_config.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestMergeClassesAppendsUnknownOnly(t *testing.T) {
	doc, _ := loadFixture(t)

	added := doc.MergeClasses([]string{"enemy", "ammo", "crate"})

	if !reflect.DeepEqual(added, []string{"crate"}) {
		t.Errorf("added = %v, want [crate]", added)
	}

	labels := doc.Labels()
	wantLabels := []Label{
		{Name: "enemy", Description: "hostile player"},
		{Name: "ammo", Description: ""},
		{Name: "crate", Description: ""},
	}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Errorf("labels = %v, want %v", labels, wantLabels)
	}

	// ammo keeps its secondary assignment; crate lands in the default tier.
	if got := doc.Tier(TierSecondary); !reflect.DeepEqual(got, []string{"ammo"}) {
		t.Errorf("secondary = %v, want [ammo]", got)
	}
	if got := doc.Tier(TierPrimary); !reflect.DeepEqual(got, []string{"enemy", "crate"}) {
		t.Errorf("primary = %v, want [enemy crate]", got)
	}
}

func TestMergeClassesIsIdempotent(t *testing.T) {
	doc, _ := loadFixture(t)
	classes := []string{"enemy", "ammo", "crate"}

	doc.MergeClasses(classes)
	labelsAfterFirst := doc.Labels()
	primaryAfterFirst := doc.Tier(TierPrimary)

	added := doc.MergeClasses(classes)

	if len(added) != 0 {
		t.Errorf("second merge added %v", added)
	}
	if !reflect.DeepEqual(doc.Labels(), labelsAfterFirst) {
		t.Errorf("labels changed on second merge: %v", doc.Labels())
	}
	if !reflect.DeepEqual(doc.Tier(TierPrimary), primaryAfterFirst) {
		t.Errorf("primary changed on second merge: %v", doc.Tier(TierPrimary))
	}
}

func TestMergeClassesCreatesMissingCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	if err := os.WriteFile(path, []byte(`{"gameName": "Frontier"}`), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	added := doc.MergeClasses([]string{"enemy"})

	if !reflect.DeepEqual(added, []string{"enemy"}) {
		t.Errorf("added = %v", added)
	}
	if got := doc.Labels(); len(got) != 1 || got[0].Name != "enemy" {
		t.Errorf("labels = %v", got)
	}
	if got := doc.Tier(TierPrimary); !reflect.DeepEqual(got, []string{"enemy"}) {
		t.Errorf("primary = %v", got)
	}
}

func TestSaveRoundTripPreservesUnknownFields(t *testing.T) {
	doc, path := loadFixture(t)
	doc.SetModelFile("FrontierModel_v20250814_120000_640.onnx")
	doc.MergeClasses([]string{"enemy", "ammo", "crate"})

	if err := doc.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}

	if raw["gameName"] != "Frontier Extraction" {
		t.Errorf("gameName = %v", raw["gameName"])
	}
	overlay, ok := raw["overlay"].(map[string]any)
	if !ok {
		t.Fatalf("overlay = %v", raw["overlay"])
	}
	if overlay["hotkey"] != "F6" || overlay["opacity"] != 0.8 {
		t.Errorf("overlay = %v", overlay)
	}
	if raw["modelFile"] != "FrontierModel_v20250814_120000_640.onnx" {
		t.Errorf("modelFile = %v", raw["modelFile"])
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Tier(TierSecondary); !reflect.DeepEqual(got, []string{"ammo"}) {
		t.Errorf("secondary after round trip = %v", got)
	}
	if got := reloaded.Labels(); len(got) != 3 || got[2].Name != "crate" {
		t.Errorf("labels after round trip = %v", got)
	}
}

func TestNewDocument(t *testing.T) {
	doc := New()
	if doc.ModelFile() != "" {
		t.Errorf("ModelFile = %q", doc.ModelFile())
	}
	doc.SetModelFile("Model_v1_640.onnx")
	added := doc.MergeClasses([]string{"enemy"})
	if !reflect.DeepEqual(added, []string{"enemy"}) {
		t.Errorf("added = %v", added)
	}

	path := filepath.Join(t.TempDir(), "game_config.json")
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
}
