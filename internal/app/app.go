package app

import (
	"github.com/simaogato/indexfund-backend/internal/adapter/dispatch"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/committee"
	"github.com/simaogato/indexfund-backend/internal/usecase/dashboard"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
	"github.com/simaogato/indexfund-backend/internal/usecase/ledger"
	"github.com/simaogato/indexfund-backend/internal/usecase/pricefeed"
	"github.com/simaogato/indexfund-backend/internal/usecase/redemption"
	"github.com/simaogato/indexfund-backend/internal/usecase/remote"
	"github.com/simaogato/indexfund-backend/internal/usecase/saft"
	"github.com/simaogato/indexfund-backend/internal/usecase/seeder"
)

// Repositories is one storage backend's set of repositories
type Repositories struct {
	Ledger     domain.LedgerRepository
	Price      domain.PriceRepository
	Holding    domain.HoldingRepository
	Issuance   domain.IssuanceRepository
	Saft       domain.SaftRepository
	Staking    domain.StakingRepository
	Transfer   domain.TransferRepository
	Redemption domain.RedemptionRepository
	Committee  domain.CommitteeRepository
}

// MemoryRepositories returns repositories backed by an in-memory store
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Ledger:     memory.NewLedgerRepository(store),
		Price:      memory.NewPriceRepository(store),
		Holding:    memory.NewHoldingRepository(store),
		Issuance:   memory.NewIssuanceRepository(store),
		Saft:       memory.NewSaftRepository(store),
		Staking:    memory.NewStakingRepository(store),
		Transfer:   memory.NewTransferRepository(store),
		Redemption: memory.NewRedemptionRepository(store),
		Committee:  memory.NewCommitteeRepository(store),
	}
}

// PostgresRepositories returns repositories backed by postgres
func PostgresRepositories(db *postgres.DB) Repositories {
	return Repositories{
		Ledger:     postgres.NewLedgerRepository(db),
		Price:      postgres.NewPriceRepository(db),
		Holding:    postgres.NewHoldingRepository(db),
		Issuance:   postgres.NewIssuanceRepository(db),
		Saft:       postgres.NewSaftRepository(db),
		Staking:    postgres.NewStakingRepository(db),
		Transfer:   postgres.NewTransferRepository(db),
		Redemption: postgres.NewRedemptionRepository(db),
		Committee:  postgres.NewCommitteeRepository(db),
	}
}

// Params are the runtime constants of the fund
type Params struct {
	Treasury           domain.AccountID
	Controller         domain.AccountID
	SelfLocation       domain.Location
	Reporters          []domain.AccountID
	TransferableAssets []domain.AssetID
	MinimumRedemption  domain.Balance
	Rules              domain.VotingRules
}

// App holds every service of the fund wired to one storage backend
type App struct {
	Serializer  *dispatch.Serializer
	Ledger      *ledger.LedgerService
	Prices      *pricefeed.PriceFeedService
	Index       *index.IndexService
	Safts       *saft.SaftService
	Remote      *remote.RemoteService
	Redemptions *redemption.RedemptionService
	Committee   *committee.CommitteeService
	Dashboard   *dashboard.DashboardService
	Seeder      *seeder.GenesisSeeder
}

// New wires the services. Every service shares tx, and inbound adapters
// share the returned Serializer.
func New(repos Repositories, tx domain.TxManager, clock domain.Clock, sender domain.MessageSender, p Params) *App {
	ledgerService := ledger.NewLedgerService(repos.Ledger, tx)
	priceService := pricefeed.NewPriceFeedService(repos.Price, tx, p.Reporters)
	indexService := index.NewIndexService(repos.Holding, repos.Issuance, ledgerService, priceService, tx, p.Treasury)
	saftService := saft.NewSaftService(repos.Saft, indexService, tx)
	remoteService := remote.NewRemoteService(
		repos.Staking,
		repos.Transfer,
		indexService,
		ledgerService,
		remote.NewCompactBalanceEncoder(p.TransferableAssets),
		sender,
		tx,
		p.SelfLocation,
		p.Treasury,
		p.Controller,
	)
	redemptionService := redemption.NewRedemptionService(
		repos.Redemption,
		indexService,
		priceService,
		ledgerService,
		remoteService,
		clock,
		tx,
		p.Treasury,
		p.MinimumRedemption,
	)
	executor := committee.NewExecutor(indexService, priceService, saftService, remoteService)

	return &App{
		Serializer:  dispatch.NewSerializer(tx),
		Ledger:      ledgerService,
		Prices:      priceService,
		Index:       indexService,
		Safts:       saftService,
		Remote:      remoteService,
		Redemptions: redemptionService,
		Committee:   committee.NewCommitteeService(repos.Committee, executor, clock, tx, p.Rules),
		Dashboard:   dashboard.NewDashboardService(indexService, ledgerService, redemptionService),
		Seeder:      seeder.NewGenesisSeeder(repos.Committee, repos.Price, repos.Staking, tx),
	}
}
