package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/config"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/dataset"
	"github.com/NourAchahlaou/detectionSystemAirbus/internal/imaging"
)

const testLabel = "A123.12345"

// useTestConfig points the commands at a temp dataset root and database.
func useTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	v := viper.New()
	v.Set(config.KeyDatasetRoot, filepath.Join(root, "dataset"))
	v.Set(config.KeyDatabasePath, filepath.Join(root, "pieces.db"))
	v.Set(config.KeyWorkers, 2)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	prev := appCfg
	appCfg = cfg
	t.Cleanup(func() { appCfg = prev })
	return root
}

func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeImage(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{shade, shade, 0, 255})
		}
	}
	require.NoError(t, imaging.Save(img, path, 0))
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"piece", "annotate", "augment", "rebalance", "manifest", "overlay", "serve", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPieceLifecycle(t *testing.T) {
	root := useTestConfig(t)
	ctx := context.Background()

	require.NoError(t, run(t, pieceAddCmd(), testLabel, "--class-id", "3"))
	assert.Error(t, run(t, pieceAddCmd(), "bad-label", "--class-id", "1"))

	var sources []string
	for i := 0; i < 2; i++ {
		src := filepath.Join(root, "capture", fmt.Sprintf("shot_%d.png", i))
		writeImage(t, src, uint8(60*i))
		sources = append(sources, src)
	}
	require.NoError(t, run(t, pieceImportCmd(), append([]string{testLabel}, sources...)...))

	store, err := initStorage(ctx)
	require.NoError(t, err)
	piece, err := store.GetPieceByLabel(ctx, testLabel)
	require.NoError(t, err)
	images, err := store.ListImages(ctx, piece.ID, true)
	require.NoError(t, err)
	require.Len(t, images, 2)
	require.NoError(t, store.Close())

	layout := dataset.Layout{Root: appCfg.DatasetRoot}
	assert.FileExists(t, filepath.Join(layout.ValidImages(testLabel), "shot_0.png"))

	for _, img := range images {
		require.NoError(t, run(t, annotateAddCmd(), testLabel,
			"--image-id", fmt.Sprint(img.ID),
			"--x", "25", "--y", "25", "--width", "50", "--height", "50"))
	}
	session, err := sessionPath(testLabel)
	require.NoError(t, err)
	assert.FileExists(t, session)

	require.NoError(t, run(t, annotateCommitCmd(), testLabel))
	assert.NoFileExists(t, session)

	m, err := newManifestStore().Load()
	require.NoError(t, err)
	assert.Equal(t, map[int]string{3: testLabel}, m.Names)

	// Five rotations and two flips per image; both originals stay in valid.
	trainImages, err := dataset.ListImages(layout.TrainImages(testLabel))
	require.NoError(t, err)
	assert.Len(t, trainImages, 14)

	store, err = initStorage(ctx)
	require.NoError(t, err)
	piece, err = store.GetPieceByLabel(ctx, testLabel)
	require.NoError(t, err)
	assert.True(t, piece.IsAnnotated)
	require.NoError(t, store.Close())

	require.NoError(t, run(t, pieceTrainedCmd(), testLabel))
	require.NoError(t, run(t, pieceDeleteCmd(), testLabel))
	assert.NoDirExists(t, layout.PieceDir(testLabel))

	m, err = newManifestStore().Load()
	require.NoError(t, err)
	assert.Empty(t, m.Names)
}

func TestAnnotateAdd_InvalidDraft(t *testing.T) {
	useTestConfig(t)

	err := run(t, annotateAddCmd(), testLabel,
		"--image-id", "1", "--x", "90", "--y", "0", "--width", "20", "--height", "10")
	assert.Error(t, err)
	path, err := sessionPath(testLabel)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestCommands_RejectLabelOutsideRoot(t *testing.T) {
	root := useTestConfig(t)
	victim := filepath.Join(root, "victim")
	writeImage(t, filepath.Join(victim, "images", "valid", "a.png"), 10)

	bad := testLabel + "/../../victim"
	assert.ErrorIs(t, run(t, augmentCmd(), "--no-progress", bad), common.ErrInvalidPrecondition)
	assert.ErrorIs(t, run(t, rebalanceCmd(), bad), common.ErrInvalidPrecondition)
	assert.ErrorIs(t, run(t, annotateDiscardCmd(), bad), common.ErrInvalidPrecondition)
	assert.ErrorIs(t, run(t, pieceAddCmd(), bad, "--class-id", "1"), common.ErrInvalidPrecondition)

	assert.FileExists(t, filepath.Join(victim, "images", "valid", "a.png"))
	assert.NoDirExists(t, filepath.Join(victim, "images", "train"))
}

func TestManifestRegisterCommand(t *testing.T) {
	useTestConfig(t)

	require.NoError(t, run(t, manifestRegisterCmd(), "4", testLabel))
	assert.Error(t, run(t, manifestRegisterCmd(), "x", testLabel))

	m, err := newManifestStore().Load()
	require.NoError(t, err)
	assert.Equal(t, 1, m.NC)
}

func TestOverlayCommand(t *testing.T) {
	root := useTestConfig(t)
	src := filepath.Join(root, "img.png")
	writeImage(t, src, 100)
	labels := filepath.Join(root, "img.txt")
	require.NoError(t, os.WriteFile(labels, []byte("0 0.5 0.5 0.2 0.2\n"), 0o644))
	out := filepath.Join(root, "out", "overlay.png")

	require.NoError(t, run(t, overlayCmd(), src, labels, out, "--transform", "rot90"))
	assert.FileExists(t, out)

	assert.Error(t, run(t, overlayCmd(), src, labels, out, "--transform", "skew"))
}
