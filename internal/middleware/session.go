package middleware

import "net/http"

// RequireSession возвращает middleware, закрывающее маршрут для
// неавторизованного сеанса: вместо ошибки выполняется перенаправление
// на страницу входа.
func RequireSession(hasSession func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasSession() {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
