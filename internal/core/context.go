package core

type ctxKey string

const (
	CtxKeyUsername ctxKey = ctxKey("username")
	CtxKeyUser     ctxKey = ctxKey("user")
)
