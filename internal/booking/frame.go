package booking

import (
	"fmt"
	"strings"
)

// JavaScript fragments evaluated against the seat-selection iframe.
// Venue pages render the seat map in a same-origin frame, so its
// document and window are reachable from the top page; each builder
// closes over the frame lookup so a single Evaluate call does the
// whole job.

func framePrelude(frameName string) string {
	return fmt.Sprintf(`
		const doc = document.querySelector('iframe[name=%q]').contentDocument;
		const win = doc.defaultView;`, frameName)
}

// frameReadyExpr is truthy once the seat frame's map is rendered.
func frameReadyExpr(frameName string) string {
	return fmt.Sprintf(`(() => {
		const frame = document.querySelector('iframe[name=%q]');
		if (!frame || !frame.contentDocument) return false;
		const doc = frame.contentDocument;
		return !!(doc.querySelector('.minimap_m') || doc.querySelector('#blockFile') || doc.querySelector('div[name="tk"]'));
	})()`, frameName)
}

// enumerateBlocksJS lists blocks with remaining capacity as spatial
// candidates. Venue maps come in two shapes: an overview image map
// whose areas link ChangeBlock through href, and a hall map that does
// it through onclick. Halls without block subdivision get the "-1"
// sentinel meaning no block switch is needed. A block counts only when
// the page's own remaining-capacity table vouches for it; a map whose
// table has not loaded yet yields nothing, and the pass retries.
func enumerateBlocksJS(frameName string) string {
	return fmt.Sprintf(`(() => {%s
		let mapName = null, attr = null;
		if (doc.querySelector('.minimap_m .btn_all')) { mapName = 'map_ticket'; attr = 'href'; }
		else if (doc.querySelector('#blockFile')) { mapName = 'maphall'; attr = 'onclick'; }
		if (!mapName) return [{id: '-1', x: 0, y: 0}];
		const out = [];
		for (const area of doc.querySelectorAll('map[name="' + mapName + '"] area')) {
			const m = (area.getAttribute(attr) || '').match(/ChangeBlock\((\d+)\)/);
			if (!m) continue;
			const n = parseInt(m[1], 10);
			if (typeof win.ArBlockRemain === 'undefined' || !(win.ArBlockRemain[n] > 0)) continue;
			const coords = (area.getAttribute('coords') || '').split(',').map(Number);
			let cx = 0, cy = 0;
			for (let i = 0; i < coords.length; i += 2) { cx += coords[i]; cy += coords[i + 1]; }
			cx /= coords.length / 2;
			cy /= coords.length / 2;
			out.push({id: String(n), x: cx, y: cy});
		}
		return out;
	})()`, framePrelude(frameName))
}

func changeBlockJS(frameName, blockID string) string {
	return fmt.Sprintf(`(() => {%s
		win.ChangeBlock(%s);
		return true;
	})()`, framePrelude(frameName), blockID)
}

// enumerateSeatsJS lists free seats in the current block, optionally
// filtered by grade attribute and a floor substring of the seat title.
// Positions come from the absolutely positioned seat divs.
func enumerateSeatsJS(frameName, gradeAttr, floor string) string {
	gradeSel := ""
	if gradeAttr != "" {
		gradeSel = fmt.Sprintf(`[grade=%q]`, gradeAttr)
	}
	return fmt.Sprintf(`(() => {%s
		const floor = %q;
		const out = [];
		for (const seat of doc.querySelectorAll('div[name="tk"]%s')) {
			if (!seat.title || seat.classList.contains('reserved')) continue;
			if (floor && !seat.title.includes(floor)) continue;
			out.push({id: seat.id, x: parseInt(seat.style.left, 10) || 0, y: parseInt(seat.style.top, 10) || 0});
		}
		return out;
	})()`, framePrelude(frameName), floor, gradeSel)
}

// selectSeatJS clicks the seat and fires the page's own selection
// callback. Whether the selection stuck is decided afterwards by the
// settle window, not here.
func selectSeatJS(frameName, seatID string) string {
	return fmt.Sprintf(`(() => {%s
		const seat = doc.getElementById(%q);
		if (!seat) return false;
		seat.click();
		win.ChoiceEnd();
		return true;
	})()`, framePrelude(frameName), seatID)
}

// refreshSeatMapJS clears the rendered map and reloads availability,
// used between passes in continuous-retry mode.
func refreshSeatMapJS(frameName string) string {
	return fmt.Sprintf(`(() => {%s
		for (const sel of ['#divSeatArray', '#liLegend', '#liSelSeat', '#dMapInfo']) {
			const el = doc.querySelector(sel);
			if (el) el.innerHTML = '';
		}
		for (const sel of ['.mapFocus', '.bigmapFocus', '.minimap_m .btn_all']) {
			for (const el of doc.querySelectorAll(sel)) el.remove();
		}
		win.GetImageMap();
		return true;
	})()`, framePrelude(frameName))
}

// clickAllJS clicks a series of selectors in-page in one round trip.
func clickAllJS(selectors []string) string {
	quoted := make([]string, len(selectors))
	for i, s := range selectors {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`(() => {
		for (const sel of [%s]) {
			const el = document.querySelector(sel);
			if (el) el.click();
		}
		return true;
	})()`, strings.Join(quoted, ", "))
}

// imageLoadedExpr is truthy once the image behind selector has pixel
// data; challenge captures before that point see a blank box.
func imageLoadedExpr(selector string) string {
	return fmt.Sprintf(`(() => {
		const img = document.querySelector(%q);
		return !!(img && img.complete && img.naturalWidth > 0);
	})()`, selector)
}

func setValueJS(selector, value string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		return true;
	})()`, selector, value)
}

// fillContactJS drops placeholder digits into the orderer phone
// fields; the delivery hook refuses to advance with them empty.
func fillContactJS() string {
	return `(() => {
		const parts = {ordererMobile1: '010', ordererMobile2: '0000', ordererMobile3: '0000'};
		for (const id in parts) {
			const el = document.getElementById(id);
			if (el) el.value = parts[id];
		}
		return true;
	})()`
}
