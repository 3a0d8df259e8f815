package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDownloadSignerSignAndVerify(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "c1/roster-job-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, name, parsedExpiry, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "c1/roster-job-1.csv", name)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestDownloadSignerExpired(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Millisecond*10)
	token, _, err := signer.Sign("job-1", "c1/roster-job-1.csv")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Verify(token, false)
	require.Error(t, err)

	jobID, _, _, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, _, err := signer.Sign("job-1", "c1/roster-job-1.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "job-2"
	forged := strings.Join(parts, ".")

	_, _, _, err = signer.Verify(forged, false)
	require.Error(t, err)

	other := NewDownloadSigner("different-secret", time.Hour)
	_, _, _, err = other.Verify(token, false)
	require.Error(t, err)
}

func TestExportStoreRejectsEscapingNames(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, store.Save("../outside.csv", []byte("x")))
	require.Error(t, store.Save("/etc/passwd", []byte("x")))

	require.NoError(t, store.Save("c1/roster.csv", []byte("x")))
	file, err := store.Open("c1/roster.csv")
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
