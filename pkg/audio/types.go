package audio

import (
	"github.com/xaionaro-go/avsync/pkg/audio/types"
)

type (
	SampleRate = types.SampleRate
	Channel    = types.Channel
	PCMFormat  = types.PCMFormat
	PlayerPCM  = types.PlayerPCM
	Stream     = types.Stream
	PlayStream = types.PlayStream
)

const (
	PCMFormatU8        = types.PCMFormatU8
	PCMFormatS16LE     = types.PCMFormatS16LE
	PCMFormatS16BE     = types.PCMFormatS16BE
	PCMFormatS24LE     = types.PCMFormatS24LE
	PCMFormatS24BE     = types.PCMFormatS24BE
	PCMFormatS32LE     = types.PCMFormatS32LE
	PCMFormatS32BE     = types.PCMFormatS32BE
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
	PCMFormatFloat64LE = types.PCMFormatFloat64LE
)
