package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/shelf"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addFilterFlags(cmd)
	cmd.Flags().IntP("batch-size", "s", -1, "")
	cmd.Flags().IntP("rate-limit", "r", 0, "")
	cmd.Flags().String("image-format", "", "")
	cmd.Flags().String("chapter-format", "", "")
	cmd.Flags().Bool("skip-cover", false, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestFetchOptions(t *testing.T) {
	cmd := newTestCommand(t, "-f", "1:3", "-i", "2")
	opts, err := fetchOptions(cmd)
	require.NoError(t, err)

	keep := shelf.Combine(opts.Include, opts.Exclude)
	for index, want := range map[float64]bool{1: true, 2: false, 3: true, 4: false} {
		got := keep(&data.Chapter{Index: index})
		assert.Equal(t, want, got, "chapter %v", index)
	}
}

func TestFetchOptionsEmpty(t *testing.T) {
	opts, err := fetchOptions(newTestCommand(t))
	require.NoError(t, err)
	assert.Nil(t, opts.Include)
	assert.Nil(t, opts.Exclude)
}

func TestFetchOptionsSyntaxError(t *testing.T) {
	_, err := fetchOptions(newTestCommand(t, "--ignore", "V[1"))
	if !errors.Is(err, shelf.ErrSyntax) {
		t.Errorf("fetchOptions() error = %v, want ErrSyntax", err)
	}
}

func TestDownloadFlags(t *testing.T) {
	defaults := services.DownloadOptions{
		Method:        services.Chunked(100),
		RateLimit:     200,
		ImageFormat:   "png",
		ChapterFormat: "{index} {title}",
	}

	opts, err := downloadFlags(newTestCommand(t), defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, opts)

	opts, err = downloadFlags(newTestCommand(t,
		"-s", "0", "-r", "8", "--image-format", "jpg", "--chapter-format", "{volume}-{index}", "--skip-cover",
	), defaults)
	require.NoError(t, err)
	assert.Equal(t, services.SingleChunk(), opts.Method)
	assert.Equal(t, 8, opts.RateLimit)
	assert.Equal(t, "jpg", opts.ImageFormat)
	assert.Equal(t, "{volume}-{index}", opts.ChapterFormat)
	assert.True(t, opts.SkipCover)

	_, err = downloadFlags(newTestCommand(t, "--image-format", "tiff"), defaults)
	assert.Error(t, err)
}
