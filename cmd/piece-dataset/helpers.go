package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/filemover"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/manifest"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/pipeline"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/storage"
)

// initStorage opens the piece database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appCfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newAugmenter builds an augmenter from the loaded configuration.
func newAugmenter() *dataset.Augmenter {
	aug := dataset.NewAugmenter(appCfg.DatasetRoot)
	aug.Specs = appCfg.Specs()
	aug.Policy = appCfg.BoxPolicy
	aug.Quality = appCfg.JPEGQuality
	aug.Workers = appCfg.Workers
	aug.KeepValid = appCfg.KeepValid
	aug.Mover = filemover.New()
	return aug
}

func newManifestStore() *manifest.Store {
	return manifest.NewStore(appCfg.ManifestPath, appCfg.ManifestTrain, appCfg.ManifestVal)
}

func newCommitter(store *storage.SQLiteStorage, aug *dataset.Augmenter) *pipeline.Committer {
	return &pipeline.Committer{
		Store:     store,
		Layout:    aug.Layout,
		Augmenter: aug,
		Manifest:  newManifestStore(),
		Locker:    aug.Locker,
	}
}

// sessionPath is where the annotate commands keep a piece's pending drafts.
func sessionPath(label string) (string, error) {
	if err := dataset.ValidatePieceLabel(label); err != nil {
		return "", err
	}
	return filepath.Join(appCfg.DatasetRoot, ".sessions", label+".json"), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
