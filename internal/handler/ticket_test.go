package handler

import (
    "errors"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"

    "github.com/minhnq/library-lending/internal/model"
)

func TestPromotionIsNews(t *testing.T) {
    assert.False(t, promotionIsNews(nil, 7))

    // The caller's own promotion is not announced; they either hold the
    // response for it or just had the reservation fulfilled at the desk.
    assert.False(t, promotionIsNews(&model.Reservation{UserID: 7}, 7))

    assert.True(t, promotionIsNews(&model.Reservation{UserID: 8}, 7))
}

func TestTicketCreatedBody(t *testing.T) {
    ticket := &model.BorrowTicket{ID: 5, Token: "abc"}
    qrPart := echo.Map{"scan_url": "http://localhost/v1/admin/lend/abc"}

    body := ticketCreatedBody(ticket, qrPart, nil)
    assert.Equal(t, ticket, body["ticket"])
    assert.Equal(t, qrPart, body["qr"])

    // A render failure after commit still hands the ticket back; the QR
    // comes back null and can be re-rendered from the /qr endpoint.
    body = ticketCreatedBody(ticket, nil, errors.New("png encode failed"))
    assert.Equal(t, ticket, body["ticket"])
    assert.Nil(t, body["qr"])
}
