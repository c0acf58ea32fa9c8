// internal/workers/nlquery/validate-query/models.go
package validatequery

import "budget-nlq/internal/nlquery/service"

type Input = service.ValidateRequest

type Output = service.ValidateResponse
