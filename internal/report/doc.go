// Package report renders a finalised session: a static PNG of the heart
// rate and breathing traces (gonum/plot) and an interactive HTML chart
// (go-echarts). WriteBundle writes both next to the JSON export.
package report
