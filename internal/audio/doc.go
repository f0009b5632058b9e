// Package audio plays mood tracks through the system speaker.
// It uses the beep library to decode WAV, OGG, and MP3 files and keeps
// decoded tracks in memory, reloading a file when it changes on disk.
package audio
