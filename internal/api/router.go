package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/mail"
	"github.com/erazemk/knjiznica/internal/model"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	DB          *sql.DB
	JWTSecret   string
	Catalog     *catalog.Service
	Circulation *circulation.Engine
	Mailer      mail.Mailer

	// AdminInbox receives contact form messages. Empty disables forwarding.
	AdminInbox string

	// Now is the clock used for OTP expiry. Nil means time.Now.
	Now func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	recoveryHandler := &RecoveryHandler{DB: d.DB, Mailer: d.Mailer, Now: d.Now}
	contactHandler := &ContactHandler{DB: d.DB, Mailer: d.Mailer, Inbox: d.AdminInbox}
	usersHandler := &UsersHandler{DB: d.DB}
	booksHandler := &BooksHandler{Catalog: d.Catalog}
	borrowHandler := &BorrowHandler{Engine: d.Circulation}
	librarianHandler := &LibrarianHandler{Engine: d.Circulation}
	adminHandler := &AdminHandler{Engine: d.Circulation, Catalog: d.Catalog}
	homeHandler := &HomeHandler{Catalog: d.Catalog}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	gate := func(c model.Capability, h http.HandlerFunc) http.Handler {
		return authMW(RequireCapability(c)(h))
	}
	borrower := func(h http.HandlerFunc) http.Handler { return gate(model.CapRequestBorrow, h) }
	desk := func(h http.HandlerFunc) http.Handler { return gate(model.CapManageCirculation, h) }
	editor := func(h http.HandlerFunc) http.Handler { return gate(model.CapManageCatalog, h) }
	reports := func(h http.HandlerFunc) http.Handler { return gate(model.CapViewReports, h) }
	admin := func(h http.HandlerFunc) http.Handler { return gate(model.CapManageUsers, h) }

	mux.HandleFunc("GET /healthz", healthHandler(d.DB))

	// Public: accounts and password recovery.
	mux.HandleFunc("POST /api/users/register", authHandler.Register)
	mux.HandleFunc("POST /api/users/login", authHandler.Login)
	mux.HandleFunc("POST /api/users/forgot-password", recoveryHandler.ForgotPassword)
	mux.HandleFunc("POST /api/users/verify-otp", recoveryHandler.VerifyOTP)
	mux.HandleFunc("POST /api/users/resend-otp", recoveryHandler.ResendOTP)
	mux.HandleFunc("POST /api/users/reset-password", recoveryHandler.ResetPassword)
	mux.HandleFunc("POST /api/users/contact", contactHandler.Create)

	// Authenticated account routes.
	mux.Handle("POST /api/users/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/users/profile", authMW(http.HandlerFunc(authHandler.Profile)))
	mux.Handle("PUT /api/users/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Home and catalog reads are public.
	mux.HandleFunc("GET /api/home", homeHandler.Home)
	mux.HandleFunc("GET /api/books", booksHandler.List)
	mux.HandleFunc("GET /api/books/latest", booksHandler.Latest)
	mux.HandleFunc("GET /api/books/{id}", booksHandler.Get)
	mux.HandleFunc("GET /api/books/{id}/cover", booksHandler.GetCover)

	// Catalog writes (librarian+).
	mux.Handle("POST /api/books", editor(booksHandler.Create))
	mux.Handle("PUT /api/books/{id}", editor(booksHandler.Update))
	mux.Handle("DELETE /api/books/{id}", editor(booksHandler.Delete))
	mux.Handle("PUT /api/books/{id}/cover", editor(booksHandler.UploadCover))

	// Borrowing (any role).
	mux.Handle("POST /api/borrow/request-issue/{bookId}", borrower(borrowHandler.RequestIssue))
	mux.Handle("POST /api/borrow/request-return/{bookId}", borrower(borrowHandler.RequestReturn))
	mux.Handle("GET /api/borrow/mine", borrower(borrowHandler.Mine))

	// Circulation desk (librarian+).
	mux.Handle("GET /api/librarian/bookissued", desk(librarianHandler.Issued))
	mux.Handle("GET /api/librarian/issuerequest", desk(librarianHandler.IssueRequests))
	mux.Handle("GET /api/librarian/returnrequest", desk(librarianHandler.ReturnRequests))
	mux.Handle("GET /api/librarian/borrows/{id}", desk(librarianHandler.Get))
	mux.Handle("PUT /api/librarian/approverequest/{id}", desk(librarianHandler.Approve))
	mux.Handle("PUT /api/librarian/approvereturnrequest/{id}", desk(librarianHandler.ApproveReturn))
	mux.Handle("DELETE /api/librarian/cancelrequest/{id}", desk(librarianHandler.Cancel))

	// Reports (librarian+).
	mux.Handle("GET /api/admin/borrow-stats", reports(adminHandler.BorrowStats))
	mux.Handle("GET /api/admin/issued-books", reports(adminHandler.IssuedBooks))
	mux.Handle("GET /api/admin/borrows", reports(adminHandler.Borrows))
	mux.Handle("GET /api/admin/books", reports(adminHandler.Books))
	mux.Handle("GET /api/admin/books/latest", reports(adminHandler.LatestBooks))
	mux.Handle("GET /api/admin/users", reports(usersHandler.List))

	// Account administration (admin only).
	mux.Handle("POST /api/admin/librarians", admin(usersHandler.CreateLibrarian))
	mux.Handle("GET /api/admin/users/{id}", admin(usersHandler.Get))
	mux.Handle("GET /api/admin/contacts", admin(contactHandler.List))

	return LoggingMiddleware(RecoverMiddleware(mux))
}
