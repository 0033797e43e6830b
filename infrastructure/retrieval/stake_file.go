package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-desirability/internal/domain"
	"github.com/ahrav/go-desirability/internal/ports"
)

var _ ports.StakeResolver = (*FileStakeResolver)(nil)

// FileStakeResolver reads participants from a YAML (or JSON) list of
// {hotkey, stake} entries. A missing stake counts as 1.
//
//	- hotkey: 5F3sa2TJ...
//	  stake: 0.42
//	- hotkey: 5HGjWAeF...
type FileStakeResolver struct {
	path string
}

// NewFileStakeResolver creates a resolver reading path on every call.
func NewFileStakeResolver(path string) *FileStakeResolver {
	return &FileStakeResolver{path: filepath.Clean(path)}
}

// Participants implements ports.StakeResolver.
func (r *FileStakeResolver) Participants(ctx context.Context) ([]domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read stakes: %w", err)
	}
	return ParseParticipants(data)
}

// ParseParticipants decodes a participant list.
func ParseParticipants(data []byte) ([]domain.Participant, error) {
	var participants []domain.Participant
	if err := yaml.Unmarshal(data, &participants); err != nil {
		return nil, fmt.Errorf("decode stakes: %w", err)
	}
	for i, p := range participants {
		if p.Hotkey == "" {
			return nil, fmt.Errorf("decode stakes: entry %d has no hotkey", i)
		}
	}
	return participants, nil
}

// StaticStakeResolver returns a fixed participant list.
type StaticStakeResolver []domain.Participant

// Participants implements ports.StakeResolver.
func (s StaticStakeResolver) Participants(context.Context) ([]domain.Participant, error) {
	return append([]domain.Participant(nil), s...), nil
}
