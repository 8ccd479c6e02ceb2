package patterns

// =============================================================================
// RULE DEFINITIONS BY CATEGORY
// All built-in rules are registered here and compiled once at construction.
// This is a single source of truth for the static scam catalog.
// =============================================================================

const catalogVersion = "2024.1"

// --- INVESTMENT AND TRADING SCAMS ---
func (r *Registry) registerInvestmentRules() {
	cat := CategoryInvestment

	r.register(`guaranteed\s+(?:returns?|profits?|income)`, cat, TierCritical)
	r.register(`risk\s*-?\s*free\s+(?:investment|trading|opportunity)`, cat, TierCritical)
	r.register(`double\s+your\s+money\s+in\s+\d+\s+(?:days?|weeks?|months?)`, cat, TierCritical)
	r.register(`(?:200|300|500|1000)%\s+(?:return|profit|guaranteed)`, cat, TierCritical)
	r.register(`ponzi\s+scheme`, cat, TierCritical)
	r.register(`pyramid\s+scheme`, cat, TierCritical)
	r.register(`binary\s+options\s+trading`, cat, TierHigh)
	r.register(`forex\s+trading\s+(?:robot|bot|system)`, cat, TierHigh)
	r.register(`insider\s+(?:trading|information)`, cat, TierHigh)
	r.register(`stock\s+pump\s+and\s+dump`, cat, TierHigh)
}

// --- CRYPTOCURRENCY SCAMS ---
func (r *Registry) registerCryptoRules() {
	cat := CategoryCrypto

	r.register(`bitcoin\s+(?:giveaway|doubler|investment)`, cat, TierCritical)
	r.register(`ethereum\s+(?:giveaway|doubler)`, cat, TierCritical)
	r.register(`crypto\s+(?:mining|investment)\s+(?:guaranteed|profits?)`, cat, TierHigh)
	r.register(`send\s+(?:bitcoin|btc|ethereum|eth)\s+get\s+(?:double|triple)`, cat, TierCritical)
	r.register(`elon\s+musk\s+(?:bitcoin|crypto)\s+giveaway`, cat, TierCritical)
	r.register(`rug\s+pull\s+(?:crypto|token)`, cat, TierHigh)
	r.register(`pump\s+and\s+dump\s+(?:crypto|coin)`, cat, TierHigh)
	r.register(`defi\s+(?:guaranteed|risk-free)`, cat, TierHigh)
	r.register(`nft\s+(?:guaranteed|investment|profits?)`, cat, TierMedium)
}

// --- ROMANCE AND SOCIAL ENGINEERING SCAMS ---
func (r *Registry) registerRomanceRules() {
	cat := CategoryRomance

	r.register(`need\s+money\s+for\s+(?:emergency|medical|travel)`, cat, TierHigh)
	r.register(`western\s+union\s+(?:transfer|money)`, cat, TierHigh)
	r.register(`money\s*gram\s+transfer`, cat, TierHigh)
	r.register(`gift\s+cards?\s+(?:payment|money|transfer)`, cat, TierHigh)
	r.register(`i\s+love\s+you\s+(?:but|and)\s+need`, cat, TierMedium)
	r.register(`military\s+(?:deployment|overseas)\s+money`, cat, TierMedium)
	r.register(`stranded\s+(?:abroad|overseas)\s+need\s+money`, cat, TierHigh)
	r.register(`inheritance\s+money\s+(?:help|transfer)`, cat, TierMedium)
}

// --- PHISHING AND ACCOUNT VERIFICATION SCAMS ---
func (r *Registry) registerPhishingRules() {
	cat := CategoryPhishing

	r.register(`verify\s+your\s+(?:account|identity)\s+(?:immediately|now)`, cat, TierCritical)
	r.register(`account\s+(?:suspended|locked|compromised)`, cat, TierHigh)
	r.register(`confirm\s+your\s+(?:details|information|payment)`, cat, TierHigh)
	r.register(`update\s+your\s+(?:password|payment|billing)`, cat, TierHigh)
	r.register(`click\s+here\s+to\s+(?:verify|confirm|update)`, cat, TierHigh)
	r.register(`suspicious\s+activity\s+detected`, cat, TierHigh)
	r.register(`unauthorized\s+(?:access|transaction|login)`, cat, TierMedium)
	r.register(`security\s+alert\s+(?:urgent|immediate)`, cat, TierMedium)
}

// --- TECH SUPPORT SCAMS ---
func (r *Registry) registerTechSupportRules() {
	cat := CategoryTechSupport

	r.register(`microsoft\s+(?:support|security|windows)`, cat, TierHigh)
	r.register(`apple\s+support\s+(?:urgent|security)`, cat, TierHigh)
	r.register(`computer\s+(?:infected|virus|malware)`, cat, TierHigh)
	r.register(`call\s+(?:this\s+number|immediately)\s+\+?[\d\-\(\)\s]+`, cat, TierHigh)
	r.register(`remote\s+access\s+(?:required|needed)`, cat, TierHigh)
	r.register(`firewall\s+(?:breach|compromised)`, cat, TierMedium)
	r.register(`trojan\s+(?:detected|virus|malware)`, cat, TierMedium)
}

// --- LOTTERY AND PRIZE SCAMS ---
func (r *Registry) registerLotteryRules() {
	cat := CategoryLottery

	r.register(`you\s+(?:have\s+)?won\s+\$?[\d,]+`, cat, TierHigh)
	r.register(`lottery\s+(?:winner|prize|jackpot)`, cat, TierHigh)
	r.register(`congratulations\s+you\s+(?:won|selected)`, cat, TierMedium)
	r.register(`claim\s+your\s+(?:prize|winnings|reward)`, cat, TierMedium)
	r.register(`processing\s+fee\s+(?:required|needed)`, cat, TierHigh)
	r.register(`tax\s+(?:payment|fee)\s+(?:required|needed)`, cat, TierHigh)
}

// --- EMPLOYMENT AND JOB SCAMS ---
func (r *Registry) registerJobRules() {
	cat := CategoryJob

	r.register(`work\s+from\s+home\s+(?:\$\d+|\d+\$)`, cat, TierMedium)
	r.register(`easy\s+money\s+(?:guaranteed|opportunity)`, cat, TierMedium)
	r.register(`envelope\s+stuffing\s+(?:job|work)`, cat, TierMedium)
	r.register(`mystery\s+shopper\s+(?:job|opportunity)`, cat, TierMedium)
	r.register(`data\s+entry\s+(?:\$\d+|\d+\$)\s+(?:per\s+hour|daily)`, cat, TierMedium)
	r.register(`no\s+experience\s+(?:required|needed)\s+high\s+pay`, cat, TierMedium)
}

// --- URGENCY AND PRESSURE TACTICS ---
func (r *Registry) registerUrgencyRules() {
	cat := CategoryUrgency

	r.register(`act\s+now\s+or\s+(?:miss\s+out|lose)`, cat, TierHigh)
	r.register(`limited\s+time\s+offer\s+expires?`, cat, TierMedium)
	r.register(`urgent\s+(?:action\s+)?required`, cat, TierMedium)
	r.register(`expires?\s+(?:today|tonight|in\s+\d+\s+hours?)`, cat, TierMedium)
	r.register(`last\s+(?:chance|opportunity)`, cat, TierMedium)
	r.register(`immediate\s+(?:action\s+)?required`, cat, TierMedium)
	r.register(`don'?t\s+(?:delay|wait|hesitate)`, cat, TierLow)
}

// --- CONTACT AND RESPONSE PRESSURE ---
func (r *Registry) registerContactPressureRules() {
	cat := CategoryContactPressure

	r.register(`call\s+(?:me\s+)?(?:now|immediately|asap)`, cat, TierMedium)
	r.register(`text\s+(?:me\s+)?(?:back|now|asap)`, cat, TierMedium)
	r.register(`respond\s+(?:immediately|asap|now)`, cat, TierMedium)
	r.register(`reply\s+(?:immediately|asap|now)`, cat, TierMedium)
	r.register(`contact\s+(?:me\s+)?(?:immediately|asap)`, cat, TierMedium)
}
