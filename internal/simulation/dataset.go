package simulation

import (
	"context"
	"math/rand"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage"
	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/storage/parquet"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// maxDatasetRows bounds how much of a dataset file is held in memory.
const maxDatasetRows = 3000

// ConnectionResolver opens named storage connections.
type ConnectionResolver interface {
	GetConnection(ctx context.Context, name string) (storage.Connection, error)
}

// datasetRow is one row of an ingested transaction chunk. Every column is stored as a string.
type datasetRow struct {
	TransactionID  *string `parquet:"name=TransactionID, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TransactionAmt *string `parquet:"name=TransactionAmt, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ProductCD      *string `parquet:"name=ProductCD, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card1          *string `parquet:"name=card1, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card2          *string `parquet:"name=card2, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card3          *string `parquet:"name=card3, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card4          *string `parquet:"name=card4, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card5          *string `parquet:"name=card5, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Card6          *string `parquet:"name=card6, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Addr1          *string `parquet:"name=addr1, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Addr2          *string `parquet:"name=addr2, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Dist1          *string `parquet:"name=dist1, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Dist2          *string `parquet:"name=dist2, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PEmailDomain   *string `parquet:"name=P_emaildomain, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	REmailDomain   *string `parquet:"name=R_emaildomain, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func float(p *string) *float64 {
	if p == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*p, 64)
	if err != nil {
		return nil
	}
	return &f
}

func (r datasetRow) transaction() model.Transaction {
	tx := model.Transaction{
		ID:           str(r.TransactionID),
		ProductCD:    str(r.ProductCD),
		Card1:        str(r.Card1),
		Card2:        str(r.Card2),
		Card3:        str(r.Card3),
		Card4:        str(r.Card4),
		Card5:        str(r.Card5),
		Card6:        str(r.Card6),
		Addr1:        str(r.Addr1),
		Addr2:        str(r.Addr2),
		Dist1:        float(r.Dist1),
		Dist2:        float(r.Dist2),
		PEmailDomain: str(r.PEmailDomain),
		REmailDomain: str(r.REmailDomain),
	}
	if amt := float(r.TransactionAmt); amt != nil {
		tx.Amount = *amt
	}
	return tx
}

// builtinSample is used when no dataset object is configured.
var builtinSample = []model.Transaction{
	{ID: "3663549", Amount: 31.95, ProductCD: "W", Card1: "10409", Card2: "111", Card3: "150", Card4: "visa", Card5: "226", Card6: "debit", Addr1: "170", Addr2: "87", PEmailDomain: "gmail.com"},
	{ID: "3663550", Amount: 49.0, ProductCD: "W", Card1: "4272", Card2: "111", Card3: "150", Card4: "visa", Card5: "226", Card6: "debit", Addr1: "299", Addr2: "87", PEmailDomain: "aol.com"},
	{ID: "3663551", Amount: 171.0, ProductCD: "W", Card1: "4476", Card2: "574", Card3: "150", Card4: "visa", Card5: "226", Card6: "debit", Addr1: "472", Addr2: "87", PEmailDomain: "hotmail.com"},
	{ID: "3663552", Amount: 284.95, ProductCD: "W", Card1: "10989", Card2: "360", Card3: "150", Card4: "visa", Card5: "166", Card6: "debit", Addr1: "205", Addr2: "87", PEmailDomain: "gmail.com"},
	{ID: "3663553", Amount: 67.95, ProductCD: "W", Card1: "18018", Card2: "452", Card3: "150", Card4: "mastercard", Card5: "117", Card6: "debit", Addr1: "264", Addr2: "87", PEmailDomain: "gmail.com"},
	{ID: "3663554", Amount: 57.95, ProductCD: "C", Card1: "12839", Card2: "321", Card3: "150", Card4: "visa", Card5: "226", Card6: "credit", Addr1: "325", Addr2: "87", PEmailDomain: "outlook.com", REmailDomain: "outlook.com"},
}

// LoadDataset reads the configured dataset object, or returns the built-in
// sample when none is configured. Rows without an id are skipped.
func LoadDataset(ctx context.Context, resolver ConnectionResolver, cfg *config.SimulationConfig) ([]model.Transaction, error) {
	if cfg.DatasetObject == "" {
		logger.Infof("No simulation dataset configured; using %d built-in transactions.", len(builtinSample))
		return builtinSample, nil
	}
	conn, err := resolver.GetConnection(ctx, cfg.StorageRef)
	if err != nil {
		return nil, exception.NewFlowErrorf(moduleName, "failed to open storage '%s'", cfg.StorageRef, err)
	}
	rows, err := parquet.ReadAll[datasetRow](ctx, conn, "", cfg.DatasetObject, maxDatasetRows)
	if err != nil {
		return nil, exception.NewFlowErrorf(moduleName, "failed to read dataset '%s'", cfg.DatasetObject, err)
	}
	txs := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		if tx := r.transaction(); tx.ID != "" {
			txs = append(txs, tx)
		}
	}
	if len(txs) == 0 {
		return nil, exception.NewValidationError(moduleName, "dataset '"+cfg.DatasetObject+"' has no transactions", nil)
	}
	logger.Infof("Loaded %d simulation transactions from '%s'.", len(txs), cfg.DatasetObject)
	return txs, nil
}

// Sampler picks dataset transactions at random. It is safe for concurrent use.
type Sampler struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	dataset []model.Transaction
}

// NewSampler creates a Sampler over a non-empty dataset.
func NewSampler(dataset []model.Transaction, seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed)), dataset: dataset}
}

// Next returns a copy of a random transaction under a fresh id.
func (s *Sampler) Next() model.Transaction {
	s.mu.Lock()
	tx := s.dataset[s.rnd.Intn(len(s.dataset))]
	s.mu.Unlock()
	tx.ID = uuid.NewString()
	return tx
}
