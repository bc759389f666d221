package fix

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/domain/orderbook"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, "000", Checksum(""))
	assert.Equal(t, "065", Checksum("A"))
	assert.Equal(t, "002", Checksum(string([]byte{0xff, 0x03})))
}

func TestGenerator_RoundTrip(t *testing.T) {
	g := NewGenerator(1)
	g.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local) }

	line := g.NewOrderSingle(OrderParams{
		Symbol: "AAPL", Side: orderbook.Sell, Quantity: 120, Price: 187.456,
		Type: orderbook.Limit, TimeInForce: orderbook.GoodTillCancel, Capacity: orderbook.Principal,
	})
	assert.True(t, strings.HasPrefix(line, "8=FIX.4.2|49=CLIENT|56=SERVER|34=1|52=20240301-09:30:00|35=D|11=1|"))
	assert.Contains(t, line, "|44=187.46|")

	msg, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "D", msg.MsgType())

	at := time.Now()
	n, err := msg.NewOrder(7, at)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n.ClientID)
	assert.Equal(t, uint64(1), n.ClientOrderID)
	assert.Equal(t, "AAPL", n.Symbol)
	assert.Equal(t, orderbook.Sell, n.Side)
	assert.Equal(t, uint64(120), n.Quantity)
	assert.InDelta(t, 187.46, n.Price, 1e-9)
	assert.Equal(t, orderbook.Limit, n.Type)
	assert.Equal(t, orderbook.GoodTillCancel, n.TimeInForce)
	assert.Equal(t, orderbook.Principal, n.Capacity)
	assert.Equal(t, at, n.ReceivedAt)
}

func TestNewOrder_MaxQuantity(t *testing.T) {
	msg, err := Parse("11=5|55=GOOG|54=1|38=4294967295|44=1|40=2|59=0|47=1")
	require.NoError(t, err)
	n, err := msg.NewOrder(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(orderbook.MaxQuantity), n.Quantity)
}

func TestParse_ChecksumMismatch(t *testing.T) {
	line := NewGenerator(1).Random()
	tampered := strings.Replace(line, "35=D", "35=E", 1)

	_, err := Parse(tampered)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestParse_WithoutTrailerAndJunk(t *testing.T) {
	msg, err := Parse("garbage|55=MSFT||x=1|54=1")
	require.NoError(t, err)
	require.Len(t, msg.Fields, 2)
	v, ok := msg.Get(TagSymbol)
	assert.True(t, ok)
	assert.Equal(t, "MSFT", v)

	_, err = Parse("no fields at all")
	assert.ErrorIs(t, err, ErrNoFields)
	_, err = Parse("")
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestNewOrder_Validation(t *testing.T) {
	base := "11=5|55=GOOG|54=1|38=10|44=101.5|40=2|59=0|47=A"
	tests := []struct {
		name string
		line string
		want error
	}{
		{"missing symbol", strings.Replace(base, "55=GOOG|", "", 1), ErrMissingTag},
		{"empty symbol", strings.Replace(base, "55=GOOG", "55=", 1), ErrMissingTag},
		{"missing capacity", strings.Replace(base, "|47=A", "", 1), ErrMissingTag},
		{"bad side", strings.Replace(base, "54=1", "54=3", 1), ErrBadValue},
		{"bad qty", strings.Replace(base, "38=10", "38=-4", 1), ErrBadValue},
		{"bad price", strings.Replace(base, "44=101.5", "44=abc", 1), ErrBadValue},
		{"infinite price", strings.Replace(base, "44=101.5", "44=Inf", 1), ErrBadValue},
		{"negative infinite price", strings.Replace(base, "44=101.5", "44=-Inf", 1), ErrBadValue},
		{"nan price", strings.Replace(base, "44=101.5", "44=NaN", 1), ErrBadValue},
		{"zero price", strings.Replace(base, "44=101.5", "44=0", 1), ErrBadValue},
		{"negative price", strings.Replace(base, "44=101.5", "44=-2.5", 1), ErrBadValue},
		{"qty above 32 bits", strings.Replace(base, "38=10", "38=4294967296", 1), ErrBadValue},
		{"qty above int64", strings.Replace(base, "38=10", "38=9223372036854775808", 1), ErrBadValue},
		{"bad type", strings.Replace(base, "40=2", "40=9", 1), ErrBadValue},
		{"bad tif", strings.Replace(base, "59=0", "59=7", 1), ErrBadValue},
		{"bad capacity", strings.Replace(base, "47=A", "47=Z", 1), ErrBadValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Parse(tc.line)
			require.NoError(t, err)
			_, err = msg.NewOrder(1, time.Now())
			assert.ErrorIs(t, err, tc.want)
		})
	}

	msg, err := Parse(base)
	require.NoError(t, err)
	n, err := msg.NewOrder(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, orderbook.Agency, n.Capacity)
	assert.Equal(t, orderbook.Day, n.TimeInForce)
}

func TestGenerator_ConcurrentSequenceIsUnique(t *testing.T) {
	g := NewGenerator(42)
	const workers, each = 8, 50

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				msg, err := Parse(g.Random())
				if !assert.NoError(t, err) {
					return
				}
				seq, _ := msg.Get(TagMsgSeqNum)
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}

func TestGenerator_RandomWithinRanges(t *testing.T) {
	g := NewGenerator(7)
	for i := 0; i < 200; i++ {
		msg, err := Parse(g.Random())
		require.NoError(t, err)
		n, err := msg.NewOrder(1, time.Now())
		require.NoError(t, err)
		assert.Contains(t, DefaultSymbols, n.Symbol)
		assert.GreaterOrEqual(t, n.Quantity, uint64(1))
		assert.LessOrEqual(t, n.Quantity, uint64(500))
		assert.GreaterOrEqual(t, n.Price, 10.0)
		assert.LessOrEqual(t, n.Price, 500.0)
	}
}
