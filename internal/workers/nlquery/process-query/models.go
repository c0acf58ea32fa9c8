// internal/workers/nlquery/process-query/models.go
package processquery

import "budget-nlq/internal/nlquery/service"

type Input = service.ProcessRequest

type Output = service.ProcessResponse
