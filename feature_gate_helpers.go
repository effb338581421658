package registration

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// RegistrationGate adapts a predicate to gate.FeatureGate. Only the signup
// key is answered by the predicate; every other key resolves to enabled.
type RegistrationGate func(ctx context.Context) (bool, error)

var _ gate.FeatureGate = RegistrationGate(nil)

// Enabled implements gate.FeatureGate
func (g RegistrationGate) Enabled(ctx context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	if key != gate.FeatureUsersSignup || g == nil {
		return true, nil
	}
	return g(ctx)
}

// RegistrationOpen returns a gate fixed to open
func RegistrationOpen(open bool) RegistrationGate {
	return func(context.Context) (bool, error) {
		return open, nil
	}
}

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryInternal, "registration gate check failed").
		WithCode(errors.CodeInternal)
}

func requireRegistrationOpen(ctx context.Context, featureGate gate.FeatureGate) error {
	if featureGate == nil {
		return nil
	}
	return guard.Require(ctx, featureGate, gate.FeatureUsersSignup,
		guard.WithDisabledError(ErrRegistrationClosed),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

// IsRegistrationClosed reports whether err came from a closed signup gate
func IsRegistrationClosed(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeRegistrationClosed
	}
	return false
}
