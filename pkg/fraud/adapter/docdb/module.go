package docdb

import (
	"go.uber.org/fx"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/aws"
)

// Module provides the document database handle and the transaction store.
// Secrets come from the AWS adapter.
var Module = fx.Options(
	fx.Provide(
		func(r *aws.SecretReader) SecretGetter { return r },
		NewModuleHandle,
		NewTransactionStore,
	),
)
