package stream

import (
	"testing"
	"time"
)

func decode(t *testing.T, data string) frame {
	t.Helper()
	return decodeFrame([]byte(data), time.Now())
}

func TestDecodeFrame_AuthSuccess(t *testing.T) {
	f := decode(t, `{"type":"auth","status":"success"}`)
	if f.kind != frameAuth {
		t.Fatalf("kind = %v, want frameAuth", f.kind)
	}
	if !f.authOK {
		t.Error("authOK = false, want true")
	}
}

func TestDecodeFrame_AuthFailure(t *testing.T) {
	f := decode(t, `{"type":"auth","status":"error","message":"bad key"}`)
	if f.kind != frameAuth {
		t.Fatalf("kind = %v, want frameAuth", f.kind)
	}
	if f.authOK {
		t.Error("authOK = true, want false")
	}
}

func TestDecodeFrame_DepthPairs(t *testing.T) {
	f := decode(t, `{"symbol":"NIFTY28AUG2524600CE","ltp":120.5,"bids":[[120,75]],"asks":[[121,50]]}`)

	if f.kind != frameMarket {
		t.Fatalf("kind = %v, want frameMarket", f.kind)
	}
	if f.mode != ModeDepth {
		t.Fatalf("mode = %s, want depth", f.mode)
	}

	tick := f.tick
	if tick.Symbol != "NIFTY28AUG2524600CE" {
		t.Errorf("Symbol = %q", tick.Symbol)
	}
	if tick.LTP.String() != "120.5" {
		t.Errorf("LTP = %s, want 120.5", tick.LTP)
	}
	if tick.Bid.String() != "120" || tick.BidQty != 75 {
		t.Errorf("Bid = %s x %d, want 120 x 75", tick.Bid, tick.BidQty)
	}
	if tick.Ask.String() != "121" || tick.AskQty != 50 {
		t.Errorf("Ask = %s x %d, want 121 x 50", tick.Ask, tick.AskQty)
	}
}

func TestDecodeFrame_DepthObjects(t *testing.T) {
	f := decode(t, `{"symbol":"X","ltp":10,"bids":[{"price":9.5,"quantity":100}],"asks":[{"price":10.5,"quantity":200}]}`)

	if f.mode != ModeDepth {
		t.Fatalf("mode = %s, want depth", f.mode)
	}
	if f.tick.Bid.String() != "9.5" || f.tick.BidQty != 100 {
		t.Errorf("Bid = %s x %d", f.tick.Bid, f.tick.BidQty)
	}
	if f.tick.Ask.String() != "10.5" || f.tick.AskQty != 200 {
		t.Errorf("Ask = %s x %d", f.tick.Ask, f.tick.AskQty)
	}
}

func TestDecodeFrame_NestedDepth(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "buy/sell keys",
			data: `{"symbol":"X","ltp":10,"depth":{"buy":[[9,10]],"sell":[[11,20]]}}`,
		},
		{
			name: "bids/asks keys",
			data: `{"symbol":"X","ltp":10,"depth":{"bids":[[9,10]],"asks":[[11,20]]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := decode(t, tt.data)
			if f.mode != ModeDepth {
				t.Fatalf("mode = %s, want depth", f.mode)
			}
			if f.tick.Bid.String() != "9" || f.tick.Ask.String() != "11" {
				t.Errorf("bid/ask = %s/%s, want 9/11", f.tick.Bid, f.tick.Ask)
			}
		})
	}
}

func TestDecodeFrame_SymbolAliases(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"symbol":"A","ltp":1}`, "A"},
		{`{"Symbol":"B","ltp":1}`, "B"},
		{`{"trading_symbol":"C","ltp":1}`, "C"},
	}

	for _, tt := range tests {
		f := decode(t, tt.data)
		if f.kind != frameMarket {
			t.Fatalf("kind for %s = %v, want frameMarket", tt.data, f.kind)
		}
		if f.tick.Symbol != tt.want {
			t.Errorf("Symbol = %q, want %q", f.tick.Symbol, tt.want)
		}
	}
}

func TestDecodeFrame_LastPriceAlias(t *testing.T) {
	f := decode(t, `{"type":"market_data","symbol":"X","last_price":99.5,"bids":[[99,1]]}`)
	if f.tick.LTP.String() != "99.5" {
		t.Errorf("LTP = %s, want 99.5 (from last_price)", f.tick.LTP)
	}
}

func TestDecodeFrame_QuoteMode(t *testing.T) {
	f := decode(t, `{"symbol":"NIFTY","ltp":24537,"open":24490,"bid":24536.5,"ask":24537.5}`)

	if f.mode != ModeQuote {
		t.Fatalf("mode = %s, want quote", f.mode)
	}
	if f.tick.LTP.String() != "24537" {
		t.Errorf("LTP = %s", f.tick.LTP)
	}
	if f.tick.Bid.String() != "24536.5" || f.tick.Ask.String() != "24537.5" {
		t.Errorf("bid/ask = %s/%s", f.tick.Bid, f.tick.Ask)
	}
}

func TestDecodeFrame_LTPModeDefault(t *testing.T) {
	f := decode(t, `{"symbol":"NIFTY","ltp":24537}`)
	if f.mode != ModeLTP {
		t.Errorf("mode = %s, want ltp", f.mode)
	}
}

func TestDecodeFrame_NestedData(t *testing.T) {
	f := decode(t, `{"type":"market_data","data":{"symbol":"X","ltp":5,"open":4}}`)
	if f.kind != frameMarket {
		t.Fatalf("kind = %v, want frameMarket", f.kind)
	}
	if f.mode != ModeQuote {
		t.Errorf("mode = %s, want quote", f.mode)
	}
	if f.tick.Symbol != "X" || f.tick.LTP.String() != "5" {
		t.Errorf("tick = %+v", f.tick)
	}
}

func TestDecodeFrame_OuterSymbolNestedData(t *testing.T) {
	f := decode(t, `{"type":"market_data","symbol":"Y","data":{"ltp":7}}`)
	if f.kind != frameMarket {
		t.Fatalf("kind = %v, want frameMarket", f.kind)
	}
	if f.tick.Symbol != "Y" {
		t.Errorf("symbol = %q, want Y", f.tick.Symbol)
	}
}

func TestDecodeFrame_ZeroCoercion(t *testing.T) {
	f := decode(t, `{"type":"market_data","symbol":"X","ltp":null,"bids":[],"asks":[],"volume":"garbage","oi":null}`)

	if f.kind != frameMarket {
		t.Fatalf("kind = %v, want frameMarket (bids key marks depth)", f.kind)
	}
	if f.mode != ModeDepth {
		t.Errorf("mode = %s, want depth", f.mode)
	}

	tick := f.tick
	if !tick.LTP.IsZero() || !tick.Bid.IsZero() || !tick.Ask.IsZero() {
		t.Errorf("prices = %s/%s/%s, want all zero", tick.LTP, tick.Bid, tick.Ask)
	}
	if tick.Volume != 0 || tick.OI != 0 {
		t.Errorf("volume/oi = %d/%d, want 0/0", tick.Volume, tick.OI)
	}
}

func TestDecodeFrame_StringNumbers(t *testing.T) {
	f := decode(t, `{"symbol":"X","ltp":"120.5","volume":"1000","bids":[["120","75"]]}`)

	if f.tick.LTP.String() != "120.5" {
		t.Errorf("LTP = %s", f.tick.LTP)
	}
	if f.tick.Volume != 1000 {
		t.Errorf("Volume = %d", f.tick.Volume)
	}
	if f.tick.Bid.String() != "120" || f.tick.BidQty != 75 {
		t.Errorf("Bid = %s x %d", f.tick.Bid, f.tick.BidQty)
	}
}

func TestDecodeFrame_ShortPairSkipped(t *testing.T) {
	f := decode(t, `{"symbol":"X","ltp":1,"bids":[[120]]}`)
	if !f.tick.Bid.IsZero() {
		t.Errorf("Bid = %s, want 0 for short pair", f.tick.Bid)
	}
}

func TestDecodeFrame_Unknown(t *testing.T) {
	tests := []string{
		`{"type":"heartbeat"}`,
		`{"hello":"world"}`,
		`not json at all`,
		`{"ltp":null}`,
	}
	for _, data := range tests {
		if f := decode(t, data); f.kind != frameUnknown {
			t.Errorf("kind for %q = %v, want frameUnknown", data, f.kind)
		}
	}
}
