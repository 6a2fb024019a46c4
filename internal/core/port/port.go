package port

import (
	"context"
	"sync"

	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/quote"
)

type (
	runnerContextWg interface {
		Run(context.Context, context.CancelFunc, *sync.WaitGroup)
	}

	closer interface {
		Close()
	}
)

// Inbound ports.

type CatalogReader interface {
	Brands(context.Context) ([]string, error)
	Models(ctx context.Context, brand string) ([]string, error)
	Records(ctx context.Context, brand, model string) ([]domain.Record, error)
	SearchRecords(ctx context.Context, term string) ([]domain.Record, error)
}

type VariantResolver interface {
	VariantOptions(
		ctx context.Context, brand, model string, sel domain.Selection,
	) (domain.VariantOptions, error)
	ResolveVariant(
		ctx context.Context, brand, model string, sel domain.Selection,
	) (quote.Result, error)
}

type RecordsSender interface {
	SendRecords(context.Context, []domain.Record) error
}

type RecordBlockSetter interface {
	SetBlock(context.Context, domain.RecordBlock) error
}

type RecordBlockGetter interface {
	BlockStatus(ctx context.Context, recordID string) (domain.RecordBlock, error)
}

type RecordsSaver interface {
	SaveRecords(context.Context, []domain.Record) error
}

type CartManager interface {
	CreateCart(context.Context) (domain.Cart, error)
	Cart(ctx context.Context, cartID string) (domain.Cart, error)
	PutCartItem(
		ctx context.Context, cartID string, key domain.CartItemKey, quantity int,
	) (domain.Cart, error)
	RemoveCartItem(
		ctx context.Context, cartID string, key domain.CartItemKey,
	) (domain.Cart, error)
}

// Outbound ports.

type RecordsProducer interface {
	ProduceRecords(context.Context, []domain.Record) error
}

type RecordBlockProducer interface {
	ProduceBlock(context.Context, domain.RecordBlock) error
}

type RecordBlockProcessor interface {
	runnerContextWg
	closer
}

type RecordBlockerProcessor interface {
	runnerContextWg
	closer
}

type RecordBlockView interface {
	runnerContextWg
	IsBlocked(ctx context.Context, recordID string) (bool, error)
}

type RecordsStorage interface {
	StoreRecords(context.Context, []domain.Record) error
	ReadBrands(context.Context) ([]string, error)
	ReadModels(ctx context.Context, brand string) ([]string, error)
	ReadRecords(ctx context.Context, brand, model string) ([]domain.Record, error)
	ReadRecord(ctx context.Context, recordID string) (domain.Record, error)
	SearchRecords(ctx context.Context, term string, limit int) ([]domain.Record, error)
	SetBlocked(ctx context.Context, recordID string, blocked bool) error
}

type CartsStorage interface {
	CreateCart(ctx context.Context, cartID string) error
	ReadCart(ctx context.Context, cartID string) (domain.Cart, error)
	UpsertCartItem(
		ctx context.Context, cartID string, key domain.CartItemKey, quantity int,
	) error
	DeleteCartItem(ctx context.Context, cartID string, key domain.CartItemKey) error
}
