package seeder

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// GenesisMember is a committee seat in the genesis file
type GenesisMember struct {
	Account string `yaml:"account"`
	Type    string `yaml:"type"`
}

// GenesisStaking is a staking config in the genesis file
type GenesisStaking struct {
	Asset              string `yaml:"asset"`
	PalletIndex        uint8  `yaml:"pallet_index"`
	MaxUnlockingChunks uint32 `yaml:"max_unlocking_chunks"`
	MinimumBalance     uint64 `yaml:"minimum_balance"`
	MinimumStash       uint64 `yaml:"minimum_stash"`
}

// Genesis is the initial fund state applied on startup
type Genesis struct {
	Members       []GenesisMember  `yaml:"members"`
	TrackedAssets []string         `yaml:"tracked_assets"`
	Staking       []GenesisStaking `yaml:"staking"`
}

// LoadGenesis reads a genesis file
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file %s: %w", path, err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes and validates genesis YAML
func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if err := yaml.UnmarshalStrict(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the genesis entries before anything is written
func (g *Genesis) Validate() error {
	for _, m := range g.Members {
		if m.Account == "" {
			return fmt.Errorf("genesis member without account: %w", domain.ErrInvalidArgument)
		}
		t := domain.MemberType(m.Type)
		if t != domain.MemberCouncil && t != domain.MemberConstituent {
			return fmt.Errorf("genesis member %s has unknown type %q: %w", m.Account, m.Type, domain.ErrInvalidArgument)
		}
	}
	for _, a := range g.TrackedAssets {
		if a == "" {
			return fmt.Errorf("empty tracked asset: %w", domain.ErrInvalidArgument)
		}
	}
	for _, s := range g.Staking {
		if s.Asset == "" {
			return fmt.Errorf("staking config without asset: %w", domain.ErrInvalidArgument)
		}
		if s.MaxUnlockingChunks == 0 {
			return fmt.Errorf("staking config %s allows no unlocking chunks: %w", s.Asset, domain.ErrInvalidArgument)
		}
	}
	return nil
}

// GenesisSeeder handles seeding of the initial fund state
type GenesisSeeder struct {
	committeeRepo domain.CommitteeRepository
	priceRepo     domain.PriceRepository
	stakingRepo   domain.StakingRepository
	tx            domain.TxManager
}

// NewGenesisSeeder creates a new GenesisSeeder instance
func NewGenesisSeeder(
	committeeRepo domain.CommitteeRepository,
	priceRepo domain.PriceRepository,
	stakingRepo domain.StakingRepository,
	tx domain.TxManager,
) *GenesisSeeder {
	return &GenesisSeeder{
		committeeRepo: committeeRepo,
		priceRepo:     priceRepo,
		stakingRepo:   stakingRepo,
		tx:            tx,
	}
}

// Seed ensures every genesis entry exists. Entries already present are left
// untouched, so state changed at runtime survives a restart.
func (s *GenesisSeeder) Seed(ctx context.Context, g *Genesis) error {
	if err := g.Validate(); err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seeded := 0

		for _, m := range g.Members {
			account := domain.AccountID(m.Account)
			existing, err := s.committeeRepo.GetMember(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to get member %s: %w", account, err)
			}
			if existing != nil {
				continue
			}
			member := &domain.CommitteeMember{Account: account, Type: domain.MemberType(m.Type)}
			if err := s.committeeRepo.SaveMember(ctx, member); err != nil {
				return fmt.Errorf("failed to save member %s: %w", account, err)
			}
			seeded++
		}

		for _, a := range g.TrackedAssets {
			asset := domain.AssetID(a)
			tracked, err := s.priceRepo.IsTracked(ctx, asset)
			if err != nil {
				return fmt.Errorf("failed to check tracked asset %s: %w", asset, err)
			}
			if tracked {
				continue
			}
			if err := s.priceRepo.Track(ctx, asset); err != nil {
				return fmt.Errorf("failed to track asset %s: %w", asset, err)
			}
			seeded++
		}

		for _, sc := range g.Staking {
			asset := domain.AssetID(sc.Asset)
			existing, err := s.stakingRepo.GetConfig(ctx, asset)
			if err != nil {
				return fmt.Errorf("failed to get staking config %s: %w", asset, err)
			}
			if existing != nil {
				continue
			}
			cfg := &domain.StakingConfig{
				Asset:              asset,
				PalletIndex:        sc.PalletIndex,
				MaxUnlockingChunks: sc.MaxUnlockingChunks,
				MinimumBalance:     domain.Balance(sc.MinimumBalance),
				MinimumStash:       domain.Balance(sc.MinimumStash),
			}
			if err := s.stakingRepo.SaveConfig(ctx, cfg); err != nil {
				return fmt.Errorf("failed to save staking config %s: %w", asset, err)
			}
			seeded++
		}

		log.Info().Int("seeded", seeded).Msg("genesis applied")
		return nil
	})
}
