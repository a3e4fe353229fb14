package l1packets

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/lidar-samples/internal/fsutil"
	"github.com/banshee-data/lidar-samples/internal/lidar"
)

// Episode tree limits used by the simulator client when saving packets:
// <dir>/episode_NNN/<lidar>/lidar_NNNNN.json.
const (
	MaxEpisode = 99
	MaxFrame   = 99999
)

// DirSource walks recorded episodes in order. Within an episode, frames are
// read from lidar_00001.json upward and the first missing frame ends the
// episode. Missing episodes are skipped.
type DirSource struct {
	fs        fsutil.FileSystem
	dirs      []string
	lidarName string

	dirIdx  int
	episode int
	frame   int
}

// NewDirSource creates a source over the given recording directories.
// A nil fs uses the OS filesystem.
func NewDirSource(fs fsutil.FileSystem, lidarName string, dirs ...string) *DirSource {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &DirSource{
		fs:        fs,
		dirs:      dirs,
		lidarName: lidarName,
		episode:   1,
		frame:     1,
	}
}

// PacketPath returns the file path of a frame within an episode.
func PacketPath(dir string, episode int, lidarName string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("episode_%03d", episode), lidarName,
		fmt.Sprintf("lidar_%05d.json", frame))
}

// Next returns the next recorded packet or io.EOF once every directory has
// been walked.
func (s *DirSource) Next(ctx context.Context) (*Packet, error) {
	for s.dirIdx < len(s.dirs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.episode > MaxEpisode {
			s.dirIdx++
			s.episode, s.frame = 1, 1
			continue
		}
		if s.frame > MaxFrame {
			s.episode, s.frame = s.episode+1, 1
			continue
		}

		path := PacketPath(s.dirs[s.dirIdx], s.episode, s.lidarName, s.frame)
		if !s.fs.Exists(path) {
			s.episode, s.frame = s.episode+1, 1
			continue
		}
		s.frame++

		lidar.Tracef("[DirSource] reading %s", path)
		data, err := s.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %s: %w", path, err)
		}
		p, err := DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return p, nil
	}
	return nil, io.EOF
}
