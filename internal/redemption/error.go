package redemption

import "printlink-be/internal/apperr"

var ErrTooManyAttempts = apperr.New(apperr.CodeRateLimited, "too many pickup attempts, try again later")
