package services

import (
	"reflect"
	"testing"
)

func TestSerializeMetadataFlattensComposites(t *testing.T) {
	in := map[string]any{
		"title":   "My Note",
		"count":   3,
		"pinned":  true,
		"nothing": nil,
		"structured_content": map[string]any{
			"headings": []any{"Intro", "Details"},
		},
		"tags": []any{"go", "search"},
	}

	out := SerializeMetadata(in)

	if out["title"] != "My Note" || out["count"] != 3 || out["pinned"] != true {
		t.Errorf("scalars should pass through, got %+v", out)
	}
	if _, ok := out["structured_content"].(string); !ok {
		t.Errorf("map value should serialize to JSON string, got %T", out["structured_content"])
	}
	if _, ok := out["tags"].(string); !ok {
		t.Errorf("list value should serialize to JSON string, got %T", out["tags"])
	}
}

func TestDeserializeMetadataRoundTrip(t *testing.T) {
	in := map[string]any{
		"title": "My Note",
		"structured_content": map[string]any{
			"headings": []any{"Intro"},
		},
		"tags": []any{"go"},
	}

	out := DeserializeMetadata(SerializeMetadata(in))

	sc, ok := out["structured_content"].(map[string]any)
	if !ok {
		t.Fatalf("structured_content should come back as a map, got %T", out["structured_content"])
	}
	if !reflect.DeepEqual(sc["headings"], []any{"Intro"}) {
		t.Errorf("unexpected headings: %v", sc["headings"])
	}
	if !reflect.DeepEqual(out["tags"], []any{"go"}) {
		t.Errorf("unexpected tags: %v", out["tags"])
	}
}

func TestDeserializeMetadataKeepsPlainStrings(t *testing.T) {
	out := DeserializeMetadata(map[string]any{
		"url":   "https://example.com/article",
		"count": 7,
	})

	if out["url"] != "https://example.com/article" {
		t.Errorf("non-JSON string should survive, got %v", out["url"])
	}
	if out["count"] != 7 {
		t.Errorf("non-string value should pass through, got %v", out["count"])
	}
}
