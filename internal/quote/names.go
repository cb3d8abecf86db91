package quote

// displayNames maps feed symbols to curated display names. The upstream
// feed returns romanized names (e.g. "Kweichow Moutai"); the terminal
// renders the native ones. Codes missing here fall back to the feed's
// short name, then to the code itself.
var displayNames = map[string]string{
	"600519.SS": "贵州茅台",
	"601318.SS": "中国平安",
	"600036.SS": "招商银行",
	"601857.SS": "中国石油",
	"601012.SS": "隆基绿能",
	"603259.SS": "药明康德",
	"600030.SS": "中信证券",
	"600900.SS": "长江电力",
	"688981.SS": "中芯国际",
	"688008.SS": "澜起科技",
	"300750.SZ": "宁德时代",
	"002594.SZ": "比亚迪",
	"000858.SZ": "五粮液",
	"300059.SZ": "东方财富",
	"002230.SZ": "科大讯飞",
	"002415.SZ": "海康威视",
	"000333.SZ": "美的集团",
	"300760.SZ": "迈瑞医疗",
	"000001.SS": "上证指数",
	"399001.SZ": "深证成指",
	"399006.SZ": "创业板指",
	"000300.SS": "沪深300",
}

// DisplayName resolves a symbol to its display name with fallbacks.
func DisplayName(symbol, shortName string) string {
	if name, ok := displayNames[symbol]; ok {
		return name
	}
	if shortName != "" {
		return shortName
	}
	return symbol
}
