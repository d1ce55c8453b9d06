package lcd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/ht32-panel/pkg/device"
)

func TestOrientationReport(t *testing.T) {
	r := OrientationReport(device.Landscape)
	require.Len(t, r, ReportSize)
	assert.Equal(t, []byte{0x00, 0x55, 0xA1, 0xF1, 0x01}, r[:5])

	assert.Equal(t, byte(0x02), OrientationReport(device.Portrait)[4])
	assert.Equal(t, byte(0x02), OrientationReport(device.PortraitUpsideDown)[4])
	assert.Equal(t, byte(0x01), OrientationReport(device.LandscapeUpsideDown)[4])
}

func TestHeartbeatReport(t *testing.T) {
	ts := time.Date(2024, 3, 1, 13, 45, 30, 0, time.UTC)
	r := HeartbeatReport(ts)
	assert.Equal(t, []byte{0x00, 0x55, 0xA1, 0xF2, 13, 45, 30}, r[:7])
}

func TestRedrawReports_NativeFrame(t *testing.T) {
	pix := make([]byte, NativeWidth*NativeHeight*2)
	for i := range pix {
		pix[i] = byte(i)
	}

	reports, err := RedrawReports(pix)
	require.NoError(t, err)
	require.Len(t, reports, 27)

	first := reports[0]
	assert.Equal(t, []byte{0x00, 0x55, 0xA3, PhaseStart, 1, 0, 0, 0, 0x10}, first[:9])
	assert.Equal(t, pix[:PayloadSize], first[9:])

	mid := reports[1]
	assert.Equal(t, PhaseContinue, mid[3])
	assert.Equal(t, byte(2), mid[4])
	assert.Equal(t, []byte{0x00, 0x10, 0x00}, mid[5:8])

	last := reports[26]
	assert.Equal(t, PhaseEnd, last[3])
	assert.Equal(t, byte(27), last[4])
	// 26*4096 = 0x01A000; only the low 16 bits go on the wire.
	assert.Equal(t, []byte{0x00, 0xA0, 0x00}, last[5:8])
	assert.Equal(t, byte(2304>>8), last[8])
	assert.Equal(t, pix[26*PayloadSize:], last[9:9+2304])
	assert.Equal(t, make([]byte, PayloadSize-2304), last[9+2304:])

	for _, r := range reports {
		assert.Len(t, r, ReportSize)
	}
}

func TestRedrawReports_Invalid(t *testing.T) {
	_, err := RedrawReports(nil)
	assert.ErrorIs(t, err, device.ErrValidation)

	_, err = RedrawReports(make([]byte, 3))
	assert.ErrorIs(t, err, device.ErrValidation)

	_, err = RedrawReports(make([]byte, (MaxChunks+1)*PayloadSize))
	assert.ErrorIs(t, err, device.ErrValidation)
}

func TestRedrawReports_SingleChunk(t *testing.T) {
	reports, err := RedrawReports(make([]byte, 64))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, PhaseEnd, reports[0][3])
}
