package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teatarmk/reservation-api/internal/repository"
)

func newShowTestHandler(t *testing.T) (*ShowHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewShowHandler(repository.NewShowRepo(db)), mock
}

const validShowBody = `{
	"title": "The Seagull",
	"description": "A play in four acts",
	"director": "K. Stanislavski",
	"date": "2026-11-05",
	"time": "19:00",
	"duration": 140,
	"total_seats": 80,
	"price_cents": 1500
}`

func TestCreateShowValidation(t *testing.T) {
	h, _ := newShowTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty title", `{"title":"","description":"d","director":"x","date":"2026-11-05","time":"19:00","duration":140,"total_seats":80,"price_cents":1500}`},
		{"bad date", `{"title":"t","description":"d","director":"x","date":"05/11/2026","time":"19:00","duration":140,"total_seats":80,"price_cents":1500}`},
		{"bad time", `{"title":"t","description":"d","director":"x","date":"2026-11-05","time":"7pm","duration":140,"total_seats":80,"price_cents":1500}`},
		{"zero seats", `{"title":"t","description":"d","director":"x","date":"2026-11-05","time":"19:00","duration":140,"total_seats":0,"price_cents":1500}`},
		{"negative price", `{"title":"t","description":"d","director":"x","date":"2026-11-05","time":"19:00","duration":140,"total_seats":80,"price_cents":-1}`},
		{"zero duration", `{"title":"t","description":"d","director":"x","date":"2026-11-05","time":"19:00","duration":0,"total_seats":80,"price_cents":1500}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := jsonRequest(http.MethodPost, "/v1/shows", tc.body, nil)
			require.NoError(t, h.CreateShow(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateShow(t *testing.T) {
	h, mock := newShowTestHandler(t)

	mock.ExpectExec("INSERT INTO shows").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT .+ FROM shows WHERE id = ?").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "director", "show_date", "show_time",
			"duration_min", "total_seats", "price_cents", "created_at", "updated_at",
		}).AddRow(5, "The Seagull", "A play in four acts", "K. Stanislavski",
			"2026-11-05", "19:00", 140, 80, 1500, time.Now(), time.Now()))

	c, rec := jsonRequest(http.MethodPost, "/v1/shows", validShowBody, nil)
	require.NoError(t, h.CreateShow(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Item struct {
			ID         uint64 `json:"id"`
			TotalSeats uint32 `json:"total_seats"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(5), body.Item.ID)
	assert.Equal(t, uint32(80), body.Item.TotalSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShowInvalidID(t *testing.T) {
	h, _ := newShowTestHandler(t)

	c, rec := jsonRequest(http.MethodGet, "/v1/shows/abc", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("abc")
	require.NoError(t, h.GetShow(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteShowConflict(t *testing.T) {
	h, mock := newShowTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM shows WHERE id = ?").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	c, rec := jsonRequest(http.MethodDelete, "/v1/shows/5", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.DeleteShow(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
