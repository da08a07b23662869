package auction

import "context"

type MockService struct {
	PingFunc     func(ctx context.Context) error
	CreateFunc   func(ctx context.Context, id, details, creator string, initialPrice float64) (*Auction, error)
	GetFunc      func(ctx context.Context, id string) (*Auction, error)
	ListFunc     func(ctx context.Context) ([]*Auction, error)
	PlaceBidFunc func(ctx context.Context, id string, bid Bid) (*PlacedBid, error)
	CloseFunc    func(ctx context.Context, id, callerID string) (*Auction, error)
}

var _ Service = (*MockService)(nil)

func NewMockServiceErr(err error) *MockService {
	return &MockService{
		PingFunc: func(ctx context.Context) error {
			return err
		},
		CreateFunc: func(ctx context.Context, id, details, creator string, initialPrice float64) (*Auction, error) {
			return nil, err
		},
		GetFunc: func(ctx context.Context, id string) (*Auction, error) {
			return nil, err
		},
		ListFunc: func(ctx context.Context) ([]*Auction, error) {
			return nil, err
		},
		PlaceBidFunc: func(ctx context.Context, id string, bid Bid) (*PlacedBid, error) {
			return nil, err
		},
		CloseFunc: func(ctx context.Context, id, callerID string) (*Auction, error) {
			return nil, err
		},
	}
}

func (m *MockService) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

func (m *MockService) Create(ctx context.Context, id, details, creator string, initialPrice float64) (*Auction, error) {
	return m.CreateFunc(ctx, id, details, creator, initialPrice)
}

func (m *MockService) Get(ctx context.Context, id string) (*Auction, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockService) List(ctx context.Context) ([]*Auction, error) {
	return m.ListFunc(ctx)
}

func (m *MockService) PlaceBid(ctx context.Context, id string, bid Bid) (*PlacedBid, error) {
	return m.PlaceBidFunc(ctx, id, bid)
}

func (m *MockService) Close(ctx context.Context, id, callerID string) (*Auction, error) {
	return m.CloseFunc(ctx, id, callerID)
}
