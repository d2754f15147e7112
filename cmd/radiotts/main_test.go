package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/history"
	"github.com/book-expert/radio-tts-service/internal/item"
)

const testRate = 16000

func speechWAV(t *testing.T) []byte {
	t.Helper()

	samples := make([]float64, testRate/2)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/testRate)
	}

	voiced, err := audio.NewBuffer(samples, testRate, 1)
	require.NoError(t, err)

	data, err := audio.EncodeWAVBytes(voiced)
	require.NoError(t, err)

	return data
}

// newOracle serves the synthesis and health endpoints. Requests whose
// markup contains "broken" are rejected.
func newOracle(t *testing.T) *httptest.Server {
	t.Helper()

	clip := speechWAV(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text:synthesize", func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer

		_, _ = body.ReadFrom(r.Body)

		if strings.Contains(body.String(), "broken") {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(clip)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func writeConfig(t *testing.T, dir, oracleURL string) string {
	t.Helper()

	content := fmt.Sprintf(`
[oracle]
provider = "http"
url = %q

[batch]
output_format = "wav"

[paths]
base_logs_dir = %q

[history]
enabled = true
path = %q
`, oracleURL, filepath.Join(dir, "logs"), filepath.Join(dir, "history.db"))

	path := filepath.Join(dir, "radiotts.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func writeItems(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	inputDir := t.TempDir()
	for _, name := range []string{"morning.csv", "~$morning.csv", "_scratch.toml"} {
		writeItems(t, inputDir, name, "text;filename\n")
	}

	testCases := []struct {
		name      string
		args      []string
		wantItems []string
		wantNoise item.Optional[int]
		wantErr   error
		anyErr    bool
	}{
		{
			name:      "comma list",
			args:      []string{"--items", "a.csv, b.toml,", "--voice", "en-GB-Standard-B"},
			wantItems: []string{"a.csv", "b.toml"},
		},
		{
			name:    "items required",
			args:    []string{"--voice", "x"},
			wantErr: ErrItemsRequired,
		},
		{
			name: "health needs no items",
			args: []string{"--health"},
		},
		{
			name:      "noise override",
			args:      []string{"--items", "a.csv", "--noise", "-30"},
			wantItems: []string{"a.csv"},
			wantNoise: item.Some(-30),
		},
		{
			name:   "noise must be an integer",
			args:   []string{"--items", "a.csv", "--noise", "loud"},
			anyErr: true,
		},
		{
			name:      "input directory adds its files",
			args:      []string{"--items", "a.csv", "--inputdir", inputDir},
			wantItems: []string{"a.csv", filepath.Join(inputDir, "morning.csv")},
		},
		{
			name:    "input directory without items files",
			args:    []string{"--inputdir", t.TempDir()},
			wantErr: ErrItemsRequired,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			flags, err := parseFlags(tc.args, &bytes.Buffer{})
			if tc.anyErr {
				require.Error(t, err)

				return
			}

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantItems, flags.items)
			assert.Equal(t, tc.wantNoise, flags.noise)
		})
	}
}

func TestRun_RendersBatchAndReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oracle := newOracle(t)
	configPath := writeConfig(t, dir, oracle.URL)
	itemsPath := writeItems(t, dir, "evening.csv", "text;filename\nGood evening;welcome\nTonight's news;news\n")
	outRoot := filepath.Join(dir, "out")

	var stdout bytes.Buffer

	err := run(context.Background(), []string{
		"--config", configPath, "--items", itemsPath, "--out", outRoot, "--voice", "en-GB-Standard-B",
	}, &stdout)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outRoot, "evening", "welcome.wav"))
	assert.FileExists(t, filepath.Join(outRoot, "evening", "news.wav"))
	assert.Contains(t, strings.ToLower(stdout.String()), "welcome")

	reportFile, err := os.Open(filepath.Join(outRoot, "evening", "parameters-evening.csv"))
	require.NoError(t, err)

	defer reportFile.Close()

	records, err := item.ReadCSV(reportFile, ';')
	require.NoError(t, err)
	require.Len(t, records, 2)

	voice, ok := records[0].Voice.Get()
	require.True(t, ok)
	assert.Equal(t, "en-GB-Standard-B", voice)

	store, err := history.Open(context.Background(), filepath.Join(dir, "history.db"))
	require.NoError(t, err)

	defer store.Close()

	runs, err := store.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Items)
	assert.Zero(t, runs[0].Failed)
}

func TestRun_NoiseOverrideBeatsSheet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oracle := newOracle(t)
	configPath := writeConfig(t, dir, oracle.URL)
	itemsPath := writeItems(t, dir, "quiet.csv",
		"text;filename;subtitle;voice;highpass;lowpass;nfilter;volume;noise\nGood evening;welcome;;;;;;;-40\n;spacer\nGoodnight;bye\n")
	outRoot := filepath.Join(dir, "out")

	err := run(context.Background(), []string{
		"--config", configPath, "--items", itemsPath, "--out", outRoot, "--noise", "-30",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	reportFile, err := os.Open(filepath.Join(outRoot, "quiet", "parameters-quiet.csv"))
	require.NoError(t, err)

	defer reportFile.Close()

	records, err := item.ReadCSV(reportFile, ';')
	require.NoError(t, err)
	require.Len(t, records, 2, "the spacer row is skipped")

	for _, record := range records {
		assert.Equal(t, item.Some(-30), record.Noise, record.Filename)
	}
}

func TestRun_FailedItemSetsExitError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oracle := newOracle(t)
	configPath := writeConfig(t, dir, oracle.URL)
	itemsPath := writeItems(t, dir, "mixed.csv", "text;filename\nbroken words;bad\nfine words;good\n")
	outRoot := filepath.Join(dir, "out")

	err := run(context.Background(), []string{
		"--config", configPath, "--items", itemsPath, "--out", outRoot,
	}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrItemsFailed)

	assert.NoFileExists(t, filepath.Join(outRoot, "mixed", "bad.wav"))
	assert.FileExists(t, filepath.Join(outRoot, "mixed", "good.wav"))
	assert.FileExists(t, filepath.Join(outRoot, "mixed", "parameters-mixed.csv"))
}

func TestRun_HealthCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oracle := newOracle(t)
	configPath := writeConfig(t, dir, oracle.URL)

	var stdout bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"--config", configPath, "--health"}, &stdout))
	assert.Contains(t, stdout.String(), msgServiceHealthy)
}
