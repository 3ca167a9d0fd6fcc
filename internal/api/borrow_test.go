package api

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

func (e *testEnv) borrowAction(method, path, token string, id int64) (*model.BorrowRecord, int) {
	e.t.Helper()
	resp := e.do(method, path+strconv.FormatInt(id, 10), token, nil)
	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode
	}
	var rec model.BorrowRecord
	decodeBody(e.t, resp, &rec)
	return &rec, resp.StatusCode
}

func (e *testEnv) listBorrows(path, token string) []model.BorrowRecord {
	e.t.Helper()
	resp := e.do("GET", path, token, nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var records []model.BorrowRecord
	decodeBody(e.t, resp, &records)
	return records
}

func (e *testEnv) available(id int64) int {
	e.t.Helper()
	resp := e.do("GET", bookPath(id), "", nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var book model.Book
	decodeBody(e.t, resp, &book)
	return book.AvailableCopies
}

func TestBorrowLifecycle(t *testing.T) {
	e := setupTestServer(t)
	book := e.createBook("Dune", "Sci-Fi", 1)

	rec, code := e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, book.ID)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.BorrowRequested, rec.Status)
	assert.WithinDuration(t, e.now().Add(model.DefaultLoanPeriod), rec.DueDate, time.Second)
	assert.Equal(t, 0, e.available(book.ID))

	_, code = e.borrowAction("POST", "/api/borrow/request-issue/", e.reader2Token, book.ID)
	assert.Equal(t, http.StatusConflict, code, "last copy is reserved")

	queue := e.listBorrows("/api/librarian/issuerequest", e.librarianToken)
	require.Len(t, queue, 1)
	assert.Equal(t, "Dune", queue[0].BookTitle)
	assert.Equal(t, "ana@example.com", queue[0].UserEmail)

	_, code = e.borrowAction("POST", "/api/borrow/request-return/", e.readerToken, book.ID)
	assert.Equal(t, http.StatusBadRequest, code, "cannot return before issue")

	rec, code = e.borrowAction("PUT", "/api/librarian/approverequest/", e.librarianToken, rec.ID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.BorrowIssued, rec.Status)
	require.NotNil(t, rec.IssueDate)

	_, code = e.borrowAction("PUT", "/api/librarian/approverequest/", e.librarianToken, rec.ID)
	assert.Equal(t, http.StatusBadRequest, code, "already issued")

	issued := e.listBorrows("/api/librarian/bookissued", e.librarianToken)
	assert.Len(t, issued, 1)

	_, code = e.borrowAction("POST", "/api/borrow/request-return/", e.reader2Token, book.ID)
	assert.Equal(t, http.StatusNotFound, code, "another reader holds no record for the book")

	rec, code = e.borrowAction("POST", "/api/borrow/request-return/", e.readerToken, book.ID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.BorrowReturnRequested, rec.Status)

	// Three days late.
	e.advance(model.DefaultLoanPeriod + 3*24*time.Hour)

	returns := e.listBorrows("/api/librarian/returnrequest", e.librarianToken)
	require.Len(t, returns, 1)
	assert.Equal(t, int64(30), returns[0].Fine, "fine is reported before return approval")

	rec, code = e.borrowAction("PUT", "/api/librarian/approvereturnrequest/", e.librarianToken, rec.ID)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.BorrowReturned, rec.Status)
	assert.Equal(t, int64(30), rec.Fine)
	require.NotNil(t, rec.ReturnDate)
	assert.Equal(t, 1, e.available(book.ID))

	_, code = e.borrowAction("PUT", "/api/librarian/approvereturnrequest/", e.librarianToken, rec.ID)
	assert.Equal(t, http.StatusBadRequest, code, "returned is terminal")

	mine := e.listBorrows("/api/borrow/mine", e.readerToken)
	require.Len(t, mine, 1)
	assert.Equal(t, model.BorrowReturned, mine[0].Status)

	// The book can be borrowed again once returned.
	_, code = e.borrowAction("POST", "/api/borrow/request-issue/", e.reader2Token, book.ID)
	assert.Equal(t, http.StatusCreated, code)
}

func TestBorrowDuplicateRequest(t *testing.T) {
	e := setupTestServer(t)
	book := e.createBook("Emma", "Classics", 3)

	_, code := e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, book.ID)
	require.Equal(t, http.StatusCreated, code)

	resp := e.do("POST", "/api/borrow/request-issue/"+strconv.FormatInt(book.ID, 10), e.readerToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, errorMessage(t, resp))
	assert.Equal(t, 2, e.available(book.ID), "a rejected request reserves nothing")

	_, code = e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, 9999)
	assert.Equal(t, http.StatusNotFound, code)
	_, code = e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, 0)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBorrowCancel(t *testing.T) {
	e := setupTestServer(t)
	book := e.createBook("Emma", "Classics", 1)

	rec, code := e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, book.ID)
	require.Equal(t, http.StatusCreated, code)

	path := "/api/librarian/cancelrequest/" + strconv.FormatInt(rec.ID, 10)
	assert.Equal(t, http.StatusForbidden, e.status("DELETE", path, e.readerToken, nil))
	assert.Equal(t, http.StatusOK, e.status("DELETE", path, e.librarianToken, nil))
	assert.Equal(t, http.StatusNotFound, e.status("DELETE", path, e.librarianToken, nil))
	assert.Equal(t, http.StatusNotFound, e.status("GET", "/api/librarian/borrows/"+strconv.FormatInt(rec.ID, 10), e.librarianToken, nil))
	assert.Equal(t, 1, e.available(book.ID))
	assert.Empty(t, e.listBorrows("/api/borrow/mine", e.readerToken))
}

func TestBorrowCancelIssued(t *testing.T) {
	e := setupTestServer(t)
	book := e.createBook("Emma", "Classics", 1)

	rec, _ := e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, book.ID)
	_, code := e.borrowAction("PUT", "/api/librarian/approverequest/", e.adminToken, rec.ID)
	require.Equal(t, http.StatusOK, code)

	path := "/api/librarian/cancelrequest/" + strconv.FormatInt(rec.ID, 10)
	assert.Equal(t, http.StatusBadRequest, e.status("DELETE", path, e.librarianToken, nil))
	assert.Equal(t, 0, e.available(book.ID))
}

func TestReports(t *testing.T) {
	e := setupTestServer(t)
	dune := e.createBook("Dune", "Sci-Fi", 2)
	emma := e.createBook("Emma", "Classics", 2)

	a, _ := e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, dune.ID)
	e.borrowAction("POST", "/api/borrow/request-issue/", e.reader2Token, dune.ID)
	e.borrowAction("POST", "/api/borrow/request-issue/", e.readerToken, emma.ID)
	_, code := e.borrowAction("PUT", "/api/librarian/approverequest/", e.librarianToken, a.ID)
	require.Equal(t, http.StatusOK, code)

	resp := e.do("GET", "/api/admin/borrow-stats", e.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.BorrowStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, model.BorrowStats{Requested: 2, Issued: 1, TotalBorrowed: 3}, stats)

	issued := e.listBorrows("/api/admin/issued-books", e.adminToken)
	require.Len(t, issued, 1)
	assert.Equal(t, a.ID, issued[0].ID)

	byBook := e.listBorrows("/api/admin/borrows?book_id="+strconv.FormatInt(dune.ID, 10), e.adminToken)
	assert.Len(t, byBook, 2)
	byStatus := e.listBorrows("/api/admin/borrows?status=requested", e.adminToken)
	assert.Len(t, byStatus, 2)
	assert.Equal(t, http.StatusBadRequest, e.status("GET", "/api/admin/borrows?status=lost", e.adminToken, nil))

	mine := e.listBorrows("/api/borrow/mine?status=requested", e.readerToken)
	require.Len(t, mine, 1)
	assert.Equal(t, emma.ID, mine[0].BookID)
}
