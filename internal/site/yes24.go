package site

import "fmt"

// The two yes24 storefronts share a booking engine but differ in login
// submission, popup opening, time phrasing, delivery fields and
// agreement checkboxes.

func init() {
	register(Profile{
		ID:       "yes24",
		Name:     "YES24",
		LoginURL: "https://www.yes24.com/Templates/FTLogin.aspx",
		Login: LoginFields{
			ID:       "#SMemberID",
			Password: "#SMemberPassword",
			Submit:   "#btnLogin",
		},
		LoginWaitsForNav: true,

		OpenSaleHook: "jsf_pdi_GoPerfSale()",
		SaleAnchor:   "a.rn-bb03",

		TimeLabel: func(hh, mm string) string {
			return fmt.Sprintf("%s시 %s분", hh, mm)
		},
		SlotConfirm: "#btnSeatSelect",

		SeatFrame: "ifrmSeatFrame",
		SeatPick:  PickRanked,
		GradeAttr: func(grade string) string { return grade + "석" },

		DeliveryWaits: []string{
			"#deliveryPos input[value]",
			"#LUAddr_UserName[value]",
			"#LUAddr_MailH[value]",
			"#LUAddr_MailD[value]",
		},
		FillContact:  true,
		PaymentWaits: []string{"#rdoPays2", "#cbxAllAgree"},
		AgreeSelectors: []string{
			"#rdoPays2",
			"#cbxAllAgree",
		},

		ChallengeImage:       "#captchaImg",
		ChallengeInput:       "#captchaText",
		ChallengeRefreshHook: "initCaptcha()",
	})

	register(Profile{
		ID:       "yes24-global",
		Name:     "YES24 Global",
		LoginURL: "https://ticket.yes24.com/Pages/English/Member/FnLoginNew.aspx",
		Login: LoginFields{
			ID:       "#txtEmail",
			Password: "#txtPassword",
			Submit:   "#btnLogin",
		},
		LoginHook: "jsf_mem_login()",

		SaleAnchor: ".sinfo a",

		TimeLabel: func(hh, mm string) string {
			return hh + ":" + mm
		},
		SlotConfirm: "#btnSeatSelect",

		SeatFrame: "ifrmSeatFrame",
		SeatPick:  PickPercentile,
		GradeAttr: func(grade string) string { return grade + "석" },

		DeliveryWaits: []string{
			"#rdoDeliveryBase[value]",
			"#LUAddr_UserName[value]",
		},
		PaymentWaits: []string{"#rdoPays2", "#cbxUserInfoAgree", "#cbxCancelFeeAgree"},
		AgreeSelectors: []string{
			"#rdoPays2",
			"#cbxUserInfoAgree",
			"#cbxCancelFeeAgree",
		},

		ChallengeImage:       "#captchaImg",
		ChallengeInput:       "#captchaText",
		ChallengeRefreshHook: "initCaptcha()",
	})
}
