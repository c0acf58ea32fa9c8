// internal/workers/nlquery/confirm-query/models.go
package confirmquery

import "budget-nlq/internal/nlquery/service"

type Input = service.ConfirmRequest

type Output = service.ConfirmResponse
