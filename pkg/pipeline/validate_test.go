package pipeline

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

func noopPacketFunc(*astiav.Packet) error { return nil }
func noopFrameFunc(*astiav.Frame) error   { return nil }

func TestValidateChain_EmptyChainMatchesSourceAndSink(t *testing.T) {
	err := validateChain(UnitPacket, nil, Sink{PacketFunc: noopPacketFunc})
	require.NoError(t, err)
}

func TestValidateChain_RejectsMismatchedStageInput(t *testing.T) {
	stages := []Stage{NewFilterStage(nil, avutil.MediaInfo{})}
	err := validateChain(UnitPacket, stages, Sink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects frame input")
}

func TestValidateChain_RejectsStageAfterEncoder(t *testing.T) {
	stages := []Stage{
		NewEncoderStage(nil, avutil.Rational{}),
		NewBitstreamFilterStage(nil),
	}
	err := validateChain(UnitFrame, stages, Sink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "follows an encoder")
}

func TestValidateChain_RejectsSinkUnitMismatch(t *testing.T) {
	stages := []Stage{NewPassthroughStage(UnitPacket)}
	err := validateChain(UnitPacket, stages, Sink{FrameFunc: noopFrameFunc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink expects")
}

func TestValidateChain_PassthroughMatchesPacketSink(t *testing.T) {
	stages := []Stage{NewPassthroughStage(UnitPacket)}
	err := validateChain(UnitPacket, stages, Sink{PacketFunc: noopPacketFunc})
	require.NoError(t, err)
}

func TestTerminalUnit_EmptyChainReturnsSourceUnit(t *testing.T) {
	assert.Equal(t, UnitFrame, terminalUnit(UnitFrame, nil))
}

func TestUnitKind_String(t *testing.T) {
	assert.Equal(t, "packet", UnitPacket.String())
	assert.Equal(t, "frame", UnitFrame.String())
}
