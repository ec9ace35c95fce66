package audio

import (
	"github.com/cliptrim/cliptrim/pkg/audio/types"
)

type PlayerPCM = types.PlayerPCM
type Stream = types.Stream

type PCMFormat = types.PCMFormat

const (
	PCMFormatUndefined = types.PCMFormatUndefined
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
)
