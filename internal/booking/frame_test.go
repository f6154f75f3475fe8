package booking

import (
	"strings"
	"testing"
)

func TestEnumerateBlocksRequiresCapacityTable(t *testing.T) {
	js := enumerateBlocksJS("ifrmSeatFrame")
	if !strings.Contains(js, `typeof win.ArBlockRemain === 'undefined' ||`) {
		t.Error("blocks must be dropped when the capacity table is absent")
	}
	if !strings.Contains(js, `!(win.ArBlockRemain[n] > 0)`) {
		t.Error("blocks without remaining capacity must be dropped")
	}
	if !strings.Contains(js, `{id: '-1', x: 0, y: 0}`) {
		t.Error("halls without a block map must yield the no-switch sentinel")
	}
}

func TestSelectSeatFiresSelectionCallback(t *testing.T) {
	js := selectSeatJS("ifrmSeatFrame", "s-12")
	if !strings.Contains(js, "seat.click()") || !strings.Contains(js, "win.ChoiceEnd()") {
		t.Error("seat selection must click the node and fire the page callback")
	}
}
