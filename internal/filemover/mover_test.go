package filemover

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPools(t *testing.T) Pools {
	t.Helper()
	root := t.TempDir()
	return Pools{
		SrcImages: filepath.Join(root, "images", "valid"),
		SrcLabels: filepath.Join(root, "labels", "valid"),
		DstImages: filepath.Join(root, "images", "train"),
		DstLabels: filepath.Join(root, "labels", "train"),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seedPool writes n images with matching labels into the source pool.
func seedPool(t *testing.T, p Pools, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(p.SrcImages, fmt.Sprintf("img_%02d.jpg", i)), fmt.Sprintf("image-%d", i))
		writeFile(t, filepath.Join(p.SrcLabels, fmt.Sprintf("img_%02d.txt", i)), fmt.Sprintf("0 0.5 0.5 0.%d 0.1\n", i+1))
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func seeded() *Mover {
	return &Mover{Rand: rand.New(rand.NewSource(42))}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	writeFile(t, a, "same")
	writeFile(t, b, "same")
	writeFile(t, c, "different")

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	hc, err := HashFile(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.Len(t, ha, 32)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRebalance_TargetSize(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 12)

	report, err := seeded().Rebalance(context.Background(), p, 2)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Listed)
	assert.Equal(t, 10, report.Selected)
	assert.Equal(t, 10, report.MovedImages)
	assert.Equal(t, 10, report.MovedLabels)
	assert.Empty(t, report.MissingLabels)

	validImages := listNames(t, p.SrcImages)
	trainImages := listNames(t, p.DstImages)
	assert.Len(t, validImages, 2)
	assert.Len(t, trainImages, 10)
	assert.Len(t, listNames(t, p.SrcLabels), 2)
	assert.Len(t, listNames(t, p.DstLabels), 10)

	for _, name := range trainImages {
		stem := name[:len(name)-len(filepath.Ext(name))]
		assert.FileExists(t, filepath.Join(p.DstLabels, stem+".txt"))
	}
	for _, name := range validImages {
		stem := name[:len(name)-len(filepath.Ext(name))]
		assert.FileExists(t, filepath.Join(p.SrcLabels, stem+".txt"))
	}
}

func TestRebalance_IgnoresNonImageFiles(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 3)
	writeFile(t, filepath.Join(p.SrcImages, "img_09.jpg.part"), "partial")
	writeFile(t, filepath.Join(p.SrcImages, "notes.md"), "notes")

	report, err := seeded().Rebalance(context.Background(), p, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Listed)
	assert.Equal(t, 2, report.MovedImages)
	assert.Empty(t, report.MissingLabels)
	assert.FileExists(t, filepath.Join(p.SrcImages, "img_09.jpg.part"))
	assert.FileExists(t, filepath.Join(p.SrcImages, "notes.md"))
	assert.Len(t, listNames(t, p.DstImages), 2)
}

func TestRebalance_SecondRunMovesNothing(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 12)
	m := seeded()

	first, err := m.Rebalance(context.Background(), p, 2)
	require.NoError(t, err)
	require.Equal(t, 10, first.MovedImages)
	trainAfterFirst := listNames(t, p.DstImages)

	second, err := m.Rebalance(context.Background(), p, 2)
	require.NoError(t, err)
	assert.Zero(t, second.MovedImages)
	assert.Zero(t, second.MovedLabels)
	assert.Equal(t, trainAfterFirst, listNames(t, p.DstImages))
}

func TestRebalance_IdenticalDestinationIsSkipped(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 4)

	// Simulate an interrupted earlier run that copied everything already.
	for i := 0; i < 4; i++ {
		writeFile(t, filepath.Join(p.DstImages, fmt.Sprintf("img_%02d.jpg", i)), fmt.Sprintf("image-%d", i))
	}

	report, err := seeded().Rebalance(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.MovedImages)
	assert.Len(t, listNames(t, p.DstImages), 4)
	assert.Len(t, listNames(t, p.SrcImages), 4)
}

func TestRebalance_DifferentDestinationIsReplaced(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 2)
	writeFile(t, filepath.Join(p.DstImages, "img_00.jpg"), "stale")
	writeFile(t, filepath.Join(p.DstImages, "img_01.jpg"), "stale")

	report, err := seeded().Rebalance(context.Background(), p, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.MovedImages)
	assert.Empty(t, listNames(t, p.SrcImages))

	data, err := os.ReadFile(filepath.Join(p.DstImages, "img_00.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "image-0", string(data))
}

func TestRebalance_MissingLabelIsTolerated(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 3)
	require.NoError(t, os.Remove(filepath.Join(p.SrcLabels, "img_01.txt")))

	report, err := seeded().Rebalance(context.Background(), p, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.MovedImages)
	assert.Equal(t, 2, report.MovedLabels)
	assert.Equal(t, []string{"img_01.jpg"}, report.MissingLabels)
}

func TestRebalance_NoOps(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		p := newPools(t)
		report, err := seeded().Rebalance(context.Background(), p, 2)
		require.NoError(t, err)
		assert.Zero(t, report.Listed)
		assert.NoDirExists(t, p.DstImages)
	})

	t.Run("empty source", func(t *testing.T) {
		p := newPools(t)
		require.NoError(t, os.MkdirAll(p.SrcImages, 0o755))
		report, err := seeded().Rebalance(context.Background(), p, 2)
		require.NoError(t, err)
		assert.Zero(t, report.Selected)
	})

	t.Run("at target", func(t *testing.T) {
		p := newPools(t)
		seedPool(t, p, 2)
		report, err := seeded().Rebalance(context.Background(), p, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Listed)
		assert.Zero(t, report.Selected)
		assert.Len(t, listNames(t, p.SrcImages), 2)
	})

	t.Run("negative keep", func(t *testing.T) {
		p := newPools(t)
		_, err := seeded().Rebalance(context.Background(), p, -1)
		assert.ErrorIs(t, err, common.ErrInvalidPrecondition)
	})
}

func TestRebalance_SelectionIsRandom(t *testing.T) {
	kept := make(map[string]bool)
	for seed := int64(0); seed < 8; seed++ {
		p := newPools(t)
		seedPool(t, p, 10)
		m := &Mover{Rand: rand.New(rand.NewSource(seed))}
		_, err := m.Rebalance(context.Background(), p, 1)
		require.NoError(t, err)
		names := listNames(t, p.SrcImages)
		require.Len(t, names, 1)
		kept[names[0]] = true
	}
	assert.Greater(t, len(kept), 1, "different seeds should keep different files")
}

func TestRebalance_Cancelled(t *testing.T) {
	p := newPools(t)
	seedPool(t, p, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seeded().Rebalance(ctx, p, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, listNames(t, p.SrcImages), 5)
}
