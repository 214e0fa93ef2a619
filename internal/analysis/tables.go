package analysis

// Every table here is ordered. Earlier entries win ties, so reordering a
// table changes classification results.

// geopoliticalKeywords gate relevance and, in this order, become tags
var geopoliticalKeywords = []string{
	"sanction", "embargo", "tariff", "trade war", "export control",
	"war", "military", "invasion", "missile", "nuclear", "troops", "airstrike",
	"ceasefire", "conflict", "coup", "insurgency", "terrorism", "terrorist",
	"election", "referendum", "parliament", "president", "prime minister",
	"government", "regime", "protest", "unrest", "riot",
	"diplomat", "embassy", "ambassador", "summit", "treaty", "alliance",
	"nato", "united nations", "security council",
	"cyberattack", "espionage", "border", "refugee", "geopolitic",
	"opec", "pipeline", "supply chain", "critical minerals",
}

// locations are scanned in order; the first match is the event location
var locations = []string{
	"ukraine", "russia", "china", "taiwan", "iran", "israel", "gaza", "palestine",
	"north korea", "south korea", "japan", "india", "pakistan", "afghanistan",
	"syria", "iraq", "yemen", "saudi arabia", "turkey", "egypt", "libya",
	"sudan", "ethiopia", "nigeria", "south africa", "venezuela", "brazil",
	"mexico", "canada", "united kingdom", "germany", "france", "poland",
	"united states", "european union", "middle east", "africa", "asia",
	"europe", "latin america",
}

// locationNames gives the display form for each location table entry
var locationNames = map[string]string{
	"north korea":    "North Korea",
	"south korea":    "South Korea",
	"saudi arabia":   "Saudi Arabia",
	"south africa":   "South Africa",
	"united kingdom": "United Kingdom",
	"united states":  "United States",
	"european union": "European Union",
	"middle east":    "Middle East",
	"latin america":  "Latin America",
}

type categoryRule struct {
	terms    []string
	category string
}

// categoryRules are evaluated in order; first match wins, else General
var categoryRules = []categoryRule{
	{terms: []string{"sanction", "embargo"}, category: "Sanctions"},
	{terms: []string{"trade war", "tariff", "export control", "trade dispute"}, category: "Trade Disputes"},
	{terms: []string{"cyberattack", "cyber attack", "ransomware", "hacker", "espionage"}, category: "Cyber Security"},
	{terms: []string{"terrorism", "terrorist", "bombing", "hostage"}, category: "Terrorism"},
	{terms: []string{"war", "military", "invasion", "missile", "troops", "airstrike", "armed conflict", "ceasefire"}, category: "Military Conflict"},
	{terms: []string{"protest", "unrest", "riot", "demonstration", "strike"}, category: "Civil Unrest"},
	{terms: []string{"election", "referendum", "ballot", "vote"}, category: "Elections"},
	{terms: []string{"coup", "regime", "impeach", "government collapse", "insurgency"}, category: "Political Instability"},
	{terms: []string{"diplomat", "embassy", "ambassador", "summit", "treaty", "alliance"}, category: "Diplomatic Relations"},
	{terms: []string{"opec", "oil", "gas", "pipeline", "energy"}, category: "Energy Security"},
	{terms: []string{"supply chain", "shortage", "shipping", "critical minerals"}, category: "Supply Chain"},
	{terms: []string{"regulation", "legislation", "ban", "law"}, category: "Regulatory Changes"},
}

// closedTerms are short terms that start too many unrelated words
// ("warning", "coupon", "bank"), so they only match whole words
var closedTerms = map[string]bool{
	"war": true, "coup": true, "ban": true, "law": true, "bloc": true,
	"deal": true, "vote": true, "gas": true, "oil": true, "aid": true,
}

// CategoryGeneral is returned when no category rule matches
const CategoryGeneral = "General"

var (
	criticalTerms = []string{"nuclear", "war", "invasion", "coup", "genocide", "terrorist attack", "missile strike", "airstrike"}
	highTerms     = []string{"sanction", "embargo", "military", "conflict", "cyberattack", "martial law", "troops", "missile"}
	mediumTerms   = []string{"protest", "unrest", "tariff", "election", "diplomat", "tension", "dispute", "trade"}
)

var (
	globalImpactTerms   = []string{"global", "worldwide", "international", "united nations", "world"}
	regionalImpactTerms = []string{"regional", "region", "neighboring", "bloc", "european union", "nato", "asean", "middle east"}
	nationalImpactTerms = []string{"national", "nationwide", "federal", "government", "parliament", "country"}
)

type scoreBonus struct {
	terms []string
	bonus float64
}

// relevanceBonuses each apply at most once
var relevanceBonuses = []scoreBonus{
	{terms: []string{"nuclear", "war"}, bonus: 0.2},
	{terms: []string{"sanction", "embargo"}, bonus: 0.15},
	{terms: []string{"protest", "unrest"}, bonus: 0.1},
}

type summaryRule struct {
	term  string
	label string
}

// summaryRules look at the title first, then the description
var summaryRules = []summaryRule{
	{term: "sanction", label: "Sanctions imposed"},
	{term: "embargo", label: "Embargo announced"},
	{term: "tariff", label: "Trade tariffs announced"},
	{term: "invasion", label: "Military invasion reported"},
	{term: "ceasefire", label: "Ceasefire development"},
	{term: "missile", label: "Missile activity reported"},
	{term: "coup", label: "Coup attempt reported"},
	{term: "election", label: "Election developments"},
	{term: "protest", label: "Protests reported"},
	{term: "summit", label: "Diplomatic summit held"},
	{term: "treaty", label: "Treaty negotiations"},
	{term: "cyberattack", label: "Cyberattack reported"},
}

type weightedTerm struct {
	term   string
	weight int
}

var (
	positiveTerms = []weightedTerm{
		{"peace", 2}, {"ceasefire", 2}, {"agreement", 2}, {"deal", 1}, {"cooperation", 1},
		{"growth", 1}, {"recovery", 1}, {"stability", 1}, {"resolve", 1}, {"aid", 1},
	}
	negativeTerms = []weightedTerm{
		{"war", 2}, {"attack", 2}, {"killed", 2}, {"crisis", 2}, {"collapse", 2},
		{"sanction", 1}, {"conflict", 1}, {"threat", 1}, {"violence", 1}, {"tension", 1},
	}
	neutralTerms = []weightedTerm{
		{"talks", 1}, {"meeting", 1}, {"statement", 1}, {"report", 1},
	}
)

// entityTerms are the countries, blocs and companies recognised as entities
var entityTerms = []string{
	"united states", "china", "russia", "ukraine", "iran", "israel", "india", "japan",
	"germany", "france", "united kingdom", "taiwan", "north korea", "saudi arabia", "turkey",
	"gazprom", "rosneft", "aramco", "huawei", "tsmc", "nvidia", "samsung", "boeing",
	"airbus", "exxonmobil", "opec", "nato", "european union", "united nations",
}

// entityNames holds display names where title case is wrong
var entityNames = map[string]string{
	"united states":  "United States",
	"united kingdom": "United Kingdom",
	"north korea":    "North Korea",
	"saudi arabia":   "Saudi Arabia",
	"tsmc":           "TSMC",
	"nvidia":         "NVIDIA",
	"exxonmobil":     "ExxonMobil",
	"opec":           "OPEC",
	"nato":           "NATO",
	"european union": "European Union",
	"united nations": "United Nations",
}

// keyPhrases are longer phrases worth surfacing as event keywords
var keyPhrases = []string{
	"economic sanctions", "trade war", "supply chain", "export controls",
	"military exercise", "peace talks", "critical minerals", "energy crisis",
	"interest rates", "cyber attack", "nuclear program", "humanitarian aid",
	"arms deal", "border dispute", "oil prices",
}

// defaultEngagementMetrics are summed for the social engagement boost
var defaultEngagementMetrics = []string{"likes", "retweets", "replies", "quotes", "upvotes", "comments", "shares"}
