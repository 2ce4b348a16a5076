package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/kipubank-backend/internal/adapter/access"
	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/usecase/ledger"
	"github.com/simaogato/kipubank-backend/internal/usecase/oracle"
	"github.com/simaogato/kipubank-backend/internal/usecase/recovery"
)

// Server implements the Custody gRPC service
type Server struct {
	Ledger   *ledger.Ledger
	Oracle   *oracle.PriceOracle
	Recovery *recovery.RecoveryService
	Roles    *access.RoleTable
}

var _ CustodyServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(
	l *ledger.Ledger,
	o *oracle.PriceOracle,
	recoveryService *recovery.RecoveryService,
	roles *access.RoleTable,
) *Server {
	return &Server{
		Ledger:   l,
		Oracle:   o,
		Recovery: recoveryService,
		Roles:    roles,
	}
}

// Deposit handles the Deposit RPC. The caller's own balance is credited.
func (s *Server) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := assetField(req)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}

	balance, err := s.Ledger.Deposit(ctx, asset, caller, amount)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"asset":   asset.String(),
		"account": caller.String(),
		"balance": balance.String(),
	})
}

// Withdraw handles the Withdraw RPC. The caller's own balance is debited and paid out.
func (s *Server) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := assetField(req)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, err
	}

	balance, err := s.Ledger.Withdraw(ctx, asset, caller, amount)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"asset":   asset.String(),
		"account": caller.String(),
		"balance": balance.String(),
	})
}

// GetBalance handles the GetBalance RPC
func (s *Server) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, asset, account, err := s.balanceRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	balance, err := s.Ledger.BalanceOf(ctx, caller, asset, account)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"asset":   asset.String(),
		"account": account.String(),
		"balance": balance.String(),
	})
}

// GetBalanceUSD handles the GetBalanceUSD RPC
func (s *Server) GetBalanceUSD(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, asset, account, err := s.balanceRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	value, err := s.Ledger.BalanceOfUSD(ctx, caller, asset, account)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"asset":     asset.String(),
		"account":   account.String(),
		"usd":       value.String(),
		"usd_units": value.Units().String(),
	})
}

// GetTotalUSD handles the GetTotalUSD RPC
func (s *Server) GetTotalUSD(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	total, err := s.Ledger.TotalUSD(ctx, caller)
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"usd":       total.String(),
		"usd_units": total.Units().String(),
	})
}

// SetPriceBinding handles the SetPriceBinding RPC
func (s *Server) SetPriceBinding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := assetField(req)
	if err != nil {
		return nil, err
	}
	source := stringField(req, "source")
	if source == "" {
		return nil, status.Error(codes.InvalidArgument, "source is required")
	}

	binding, err := s.Oracle.SetBinding(ctx, caller, asset, source, boolField(req, "scaled"))
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"asset":    binding.Asset.String(),
		"source":   binding.Ref,
		"scaled":   binding.Scaled,
		"decimals": float64(binding.Decimals),
	})
}

// RecoverBalance handles the RecoverBalance RPC.
// "changed" is false when the balance already had the requested value.
func (s *Server) RecoverBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := assetField(req)
	if err != nil {
		return nil, err
	}
	account, err := addressField(req, "account")
	if err != nil {
		return nil, err
	}
	newBalance, err := balanceField(req, "new_balance")
	if err != nil {
		return nil, err
	}

	record, err := s.Recovery.RecoverBalance(ctx, recovery.RecoverBalanceInput{
		Caller:     caller,
		Asset:      asset,
		Account:    account,
		NewBalance: newBalance,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if record == nil {
		return newStruct(map[string]interface{}{"changed": false})
	}

	fields := recordToMap(record)
	fields["changed"] = true
	return newStruct(fields)
}

// ListRecoveries handles the ListRecoveries RPC
func (s *Server) ListRecoveries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	account, err := addressField(req, "account")
	if err != nil {
		return nil, err
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())

	records, err := s.Recovery.History(ctx, caller, account, limit)
	if err != nil {
		return nil, mapError(err)
	}

	list := make([]interface{}, 0, len(records))
	for _, record := range records {
		list = append(list, recordToMap(record))
	}
	return newStruct(map[string]interface{}{"records": list})
}

// GrantPermission handles the GrantPermission RPC
func (s *Server) GrantPermission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.changeRole(ctx, req, s.Roles.Grant)
}

// RevokePermission handles the RevokePermission RPC
func (s *Server) RevokePermission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.changeRole(ctx, req, s.Roles.Revoke)
}

func (s *Server) changeRole(
	ctx context.Context,
	req *structpb.Struct,
	change func(context.Context, domain.Address, domain.Role, domain.Address) error,
) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	role, err := access.ParseRole(stringField(req, "role"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid role: %v", err)
	}
	account, err := addressField(req, "account")
	if err != nil {
		return nil, err
	}

	if err := change(ctx, caller, role, account); err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"role":    string(role),
		"account": account.String(),
	})
}

func (s *Server) balanceRequest(ctx context.Context, req *structpb.Struct) (caller, asset, account domain.Address, err error) {
	if caller, err = requireCaller(ctx); err != nil {
		return
	}
	if asset, err = assetField(req); err != nil {
		return
	}
	account, err = addressField(req, "account")
	return
}

func requireCaller(ctx context.Context) (domain.Address, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return domain.Address{}, status.Error(codes.Unauthenticated, "unauthenticated caller")
	}
	return caller, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

// assetField reads the optional "asset" field; empty selects the native asset
func assetField(req *structpb.Struct) (domain.Address, error) {
	asset, err := domain.ParseAsset(stringField(req, "asset"))
	if err != nil {
		return domain.Address{}, status.Errorf(codes.InvalidArgument, "invalid asset: %v", err)
	}
	return asset, nil
}

func addressField(req *structpb.Struct, name string) (domain.Address, error) {
	addr, err := domain.ParseAddress(stringField(req, name))
	if err != nil {
		return domain.Address{}, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
	}
	return addr, nil
}

// amountField reads a positive integer amount. Amounts travel as decimal
// strings since a Struct number is a float64.
func amountField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	amount, err := domain.ParseAmount(stringField(req, name))
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
	}
	return amount, nil
}

func balanceField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	balance, err := decimal.NewFromString(stringField(req, name))
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	if err := domain.ValidateBalance(balance); err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
	}
	return balance, nil
}

func recordToMap(record *domain.RecoveryRecord) map[string]interface{} {
	return map[string]interface{}{
		"record_id":   record.ID.String(),
		"asset":       record.Asset.String(),
		"account":     record.Account.String(),
		"old_balance": record.OldBalance.String(),
		"new_balance": record.NewBalance.String(),
		"operator":    record.Operator.String(),
		"recorded_at": record.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return out, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrTransferFailed):
		code = codes.Aborted
	case errors.Is(err, domain.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrInvalidValue):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrLimitExceeded),
		errors.Is(err, domain.ErrCapExceeded):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrPriceUnavailable):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrTooManyAssets):
		code = codes.ResourceExhausted
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
