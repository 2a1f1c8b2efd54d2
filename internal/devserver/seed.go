package devserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cloudstore/cloudstore/internal/utils"
)

// Seed is the initial state of a dev server, read from a YAML file:
//
//	users:
//	  - email: alice@example.com
//	    password: secret
//	    admin: true
//	files:
//	  - owner: alice@example.com
//	    name: docs/readme.txt
//	    content: hello
type Seed struct {
	Users []SeedUser `yaml:"users"`
	Files []SeedFile `yaml:"files"`
}

type SeedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

type SeedFile struct {
	Owner   string `yaml:"owner"`
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// ParseSeed reads a seed document. An empty document is an empty seed.
func ParseSeed(r io.Reader) (*Seed, error) {
	seed := &Seed{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(seed); err != nil {
		if errors.Is(err, io.EOF) {
			return seed, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// ApplySeed creates the seeded users, already verified, and uploads the
// seeded files. Call it before the server starts taking requests.
func (s *Server) ApplySeed(seed *Seed) error {
	for _, u := range seed.Users {
		email := utils.NormalizeEmail(u.Email)
		if err := utils.ValidateEmail(email); err != nil {
			return fmt.Errorf("seed user %q: %w", u.Email, err)
		}
		if u.Password == "" {
			return fmt.Errorf("seed user %q: password is required", email)
		}
		if err := s.store.AddUser(email, u.Name, u.Password, true); err != nil {
			return fmt.Errorf("seed user %q: %w", email, err)
		}
		if u.Admin && !slices.Contains(s.config.Admins, email) {
			s.config.Admins = append(s.config.Admins, email)
		}
	}

	for _, f := range seed.Files {
		owner := utils.NormalizeEmail(f.Owner)
		if !s.store.HasUser(owner) {
			return fmt.Errorf("seed file %q: %w: %s", f.Name, ErrUserNotFound, owner)
		}
		data := []byte(f.Content)
		if _, err := s.store.Upload(owner, f.Name, utils.DetectContentType(f.Name), data); err != nil {
			return fmt.Errorf("seed file %q: %w", f.Name, err)
		}
	}
	return nil
}
