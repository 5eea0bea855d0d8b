// Package all registers every supported format decoder.
package all

import (
	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/aiff"
	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/mp3"
	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/vorbis"
	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/wav"
)
