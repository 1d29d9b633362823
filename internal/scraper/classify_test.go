package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBody(t *testing.T) {
	assert.Equal(t, KindServerUnavailable, classifyBody("Сайт временно недоступен"))
	assert.Equal(t, KindServerUnavailable, classifyBody("Информация временно недоступна"))
	assert.Equal(t, KindAccessBlocked, classifyBody("Ваш запрос заблокирован по соображениям безопасности"))
	assert.Equal(t, KindUnknownPage, classifyBody("совсем другая страница"))
}

func TestClassifyBody_FirstMatchWins(t *testing.T) {
	// A page carrying both markers classifies by the earlier one.
	body := "Сервис временно недоступен. Ваш запрос заблокирован по соображениям безопасности."
	assert.Equal(t, KindServerUnavailable, classifyBody(body))
}
