package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	OperationsTotal.Reset()
	OperationDuration.Reset()
	SharesAcceptedTotal.Reset()
	SharesRejectedTotal.Reset()
	SecretBytes.Reset()
}

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled())

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordOperation(t *testing.T) {
	Enable()
	reset()

	RecordOperation(OpSplit, "shamir", StatusSuccess, 2*time.Millisecond)
	RecordOperation(OpSplit, "shamir", StatusSuccess, time.Millisecond)
	RecordOperation(OpCombine, "robust", StatusError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSplit, "shamir", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(OperationsTotal.WithLabelValues(OpCombine, "robust", StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(OperationDuration))
}

func TestRecordWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	reset()

	RecordOperation(OpSplit, "shamir", StatusSuccess, time.Millisecond)
	RecordVerification("robust", []bool{true, false})
	RecordSecretSize(OpSplit, 32)

	assert.Equal(t, 0, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(SharesRejectedTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(SecretBytes))
}

func TestRecordVerification(t *testing.T) {
	Enable()
	reset()

	RecordVerification("robust", []bool{true, false, true, true})

	assert.Equal(t, 3.0, testutil.ToFloat64(SharesAcceptedTotal.WithLabelValues("robust")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SharesRejectedTotal.WithLabelValues("robust")))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("boom")))
}

func TestWriteTextfile(t *testing.T) {
	Enable()
	reset()
	RecordOperation(OpHash, "none", StatusSuccess, time.Microsecond)

	path := filepath.Join(t.TempDir(), "sharecrypt.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sharecrypt_operations_total{operation="hash",scheme="none",status="success"} 1`)

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}
