// Package ffmpeg normalizes arbitrary audio and video inputs into the mono
// 16 kHz WAV form the transcription engine expects.
package ffmpeg
