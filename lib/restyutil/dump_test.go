package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDumpWritesRedactedTranscripts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "server-secret"})
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	client.SetCookie(&http.Cookie{Name: "CEContactId", Value: "client-secret"})
	Dump(client, output)

	_, err = client.R().Get(srv.URL + "/overview/?page=1")
	require.NoError(t, err)
	_, err = client.R().Get(srv.URL + "/overview/?page=2")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "0001-get.txt", entries[0].Name())

	contents, err := os.ReadFile(filepath.Join(dir, "0001-get.txt"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "GET "+srv.URL+"/overview/?page=1")
	require.Contains(t, string(contents), `{"results": []}`)
	require.NotContains(t, string(contents), "client-secret")
	require.NotContains(t, string(contents), "server-secret")
}

func TestDumpNilOutput(t *testing.T) {
	client := resty.New()
	Dump(client, nil)
}

func TestNewFilesystemOutputClearsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0600))

	_, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
