package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

// ProfileService reads the candidate profile exported by the resume tooling.
type ProfileService struct {
	Path string
}

func NewProfileService(path string) *ProfileService {
	return &ProfileService{Path: path}
}

func (s *ProfileService) LoadProfile(ctx context.Context) (models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", s.Path, err)
	}
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", s.Path, err)
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("profile %s is empty", s.Path)
	}
	return profile, nil
}
