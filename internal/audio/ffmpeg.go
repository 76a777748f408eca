package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"main/internal/provider"
)

// ConvertToWAV transcodes any container ffmpeg understands (OGA voice notes,
// MP3 uploads) into mono PCM16 WAV at sampleRate. A failed conversion means
// the input media is unreadable, which is a DecodeError for the request.
func ConvertToWAV(ctx context.Context, srcPath, dstPath string, sampleRate int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", srcPath,
		"-y",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		dstPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &provider.DecodeError{
			Media: "audio",
			Err:   fmt.Errorf("ffmpeg conversion failed: %w (output: %s)", err, string(output)),
		}
	}
	return nil
}
