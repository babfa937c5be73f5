package digest

import "fmt"

const digestPromptTemplate = `CRITICAL REQUIREMENT: every piece of information in this digest MUST come from the last 3 months. Leave out any data, news or report older than that.

Research recent news, financial reports and market data for %q.
For "newJoiners" and "openPositions" consult LinkedIn, Glassdoor, Indeed, Naukri, Monster, Dice, CareerBuilder, ZipRecruiter, TechCrunch, Nasscom, Comparably, business journals and the company's own careers pages. For "openPositions" cover as many global regions as you can find.

Write a detailed corporate digest for Accionlabs, a software services company looking for partnership and sales opportunities. Fill every section that has public data. Only when a section's data is truly unavailable, return [] for list fields or "" for text fields, after exhausting your search.

Return a single valid JSON object and nothing else: no text before or after it and no markdown fences.

The JSON object must have this shape:
{
  "overview": "One paragraph on recent news, market performance and activities.",
  "keyHighlights": ["Exactly 2 of the most important recent highlights, each a concise string."],
  "keyFinancials": [
    {"metric": "Market Cap", "value": "e.g. $2.1T"},
    {"metric": "P/E Ratio", "value": "e.g. 30.5"},
    {"metric": "YOY Revenue Growth", "value": "e.g. 15.2%%"},
    {"metric": "Net Profit Margin", "value": "e.g. 25.1%%"}
  ],
  "revenueGrowth": [
    {"period": "YYYY QX", "revenue": 50.5},
    {"period": "YYYY QX", "revenue": 52.1},
    {"period": "YYYY QX", "revenue": 55.3}
  ],
  "quarterlyReleases": ["Key takeaways from the most recent quarterly earnings releases."],
  "newsAndPressReleases": ["Summaries of significant recent press releases or news stories."],
  "newJoiners": ["Full Name - New Role, for CXO or VP level hires."],
  "techFocus": "One paragraph on the technologies the company is focusing on, complementing techDistribution.",
  "techDistribution": [
    {"tech": "Primary Technology Area", "percentage": 40},
    {"tech": "Secondary Technology Area", "percentage": 30},
    {"tech": "Other", "percentage": 30}
  ],
  "strategicAndHiringInsights": "One paragraph on strategic direction and hiring trends.",
  "openPositions": [
    {"title": "Senior Frontend Engineer", "link": "https://careers.example.com/job/123", "source": "LinkedIn", "datePosted": "YYYY-MM-DD", "region": "USA"}
  ],
  "attentionPointsForAccionlabs": ["Five actionable opportunities, synergies or pitch angles for Accionlabs."]
}
`

const factsPromptTemplate = `Provide %d interesting and little-known "Did you know?" facts about %q. Keep them concise, engaging and suitable for a professional audience.`

// FactCount is how many facts GenerateFacts asks for.
const FactCount = 7

func digestPrompt(company string) string {
	return fmt.Sprintf(digestPromptTemplate, company)
}

func factsPrompt(company string) string {
	return fmt.Sprintf(factsPromptTemplate, FactCount, company)
}
