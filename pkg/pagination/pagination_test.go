package pagination

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCursorEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123, time.FixedZone("x", 3600))
	decoded, err := Decode(Cursor{CreatedAt: at, ID: "42"}.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(at))
	assert.Equal(t, "42", decoded.ID)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	c, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, token := range []string{
		"%%%",
		"bm90LWpzb24",
		Cursor{CreatedAt: time.Now()}.Encode(),
		Cursor{ID: "7"}.Encode(),
	} {
		_, err := Decode(token)
		assert.True(t, errors.Is(err, ErrInvalidCursor), "token %q: %v", token, err)
	}
}

func TestPageSize(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -4: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, PageSize(in), "PageSize(%d)", in)
	}
}

type row struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func TestKeysetWalksAllPages(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Two rows share each timestamp so the id tiebreak is exercised.
	for i := 0; i < 7; i++ {
		require.NoError(t, conn.Create(&row{ID: strconv.Itoa(i), CreatedAt: base.Add(time.Duration(i/2) * time.Minute)}).Error)
	}

	position := func(r row) Cursor { return Cursor{CreatedAt: r.CreatedAt, ID: r.ID} }
	var seen []string
	var cursor *Cursor
	for page := 0; page < 5; page++ {
		var rows []row
		require.NoError(t, conn.Scopes(Keyset(cursor, 3)).Find(&rows).Error)
		rows, cursor = Trim(rows, 3, position)
		for _, r := range rows {
			seen = append(seen, r.ID)
		}
		if cursor == nil {
			break
		}
	}
	assert.Equal(t, []string{"6", "5", "4", "3", "2", "1", "0"}, seen)
}

func TestTrimLastPage(t *testing.T) {
	rows, next := Trim([]int{1, 2}, 2, func(int) Cursor { return Cursor{} })
	assert.Len(t, rows, 2)
	assert.Nil(t, next)
}
