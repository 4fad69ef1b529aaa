package config

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCreateContentRepository_Memory(t *testing.T) {
	repo, err := CreateContentRepository(context.Background(), &ContentConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory repository: %v", err)
	}
	if repo == nil {
		t.Fatal("Expected non-nil repository")
	}
}

func TestCreateContentRepository_Filesystem(t *testing.T) {
	tmpDir := t.TempDir()

	repo, err := CreateContentRepository(context.Background(), &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": filepath.Join(tmpDir, "content")},
	})
	if err != nil {
		t.Fatalf("Failed to create filesystem repository: %v", err)
	}
	if repo == nil {
		t.Fatal("Expected non-nil repository")
	}
}

func TestCreateContentRepository_FilesystemMissingPath(t *testing.T) {
	_, err := CreateContentRepository(context.Background(), &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	})
	if err == nil {
		t.Fatal("Expected error for missing filesystem path")
	}
}

func TestCreateContentRepository_UnknownType(t *testing.T) {
	_, err := CreateContentRepository(context.Background(), &ContentConfig{Type: "carrier-pigeon"})
	if err == nil {
		t.Fatal("Expected error for unknown repository type")
	}
}

func TestCreateContentRepository_S3MissingBucket(t *testing.T) {
	_, err := CreateContentRepository(context.Background(), &ContentConfig{
		Type: "s3",
		S3:   map[string]any{"region": "eu-west-1"},
	})
	if err == nil {
		t.Fatal("Expected error for missing S3 bucket")
	}
}

func TestCreateStateSink_None(t *testing.T) {
	sink, err := CreateStateSink(context.Background(), &StateConfig{Type: "none"})
	if err != nil {
		t.Fatalf("Failed to create none sink: %v", err)
	}
	if sink != nil {
		t.Fatal("Expected nil sink for type 'none'")
	}
}

func TestCreateStateSink_Memory(t *testing.T) {
	sink, err := CreateStateSink(context.Background(), &StateConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory sink: %v", err)
	}
	if sink == nil {
		t.Fatal("Expected non-nil sink")
	}
}

func TestCreateStateSink_BadgerMissingPath(t *testing.T) {
	_, err := CreateStateSink(context.Background(), &StateConfig{
		Type:   "badger",
		Badger: map[string]any{},
	})
	if err == nil {
		t.Fatal("Expected error for missing badger path")
	}
}
