package shop

import "printlink-be/internal/apperr"

var ErrShopNotFound = apperr.New(apperr.CodeNotFound, "shop not found")
