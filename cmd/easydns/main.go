package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"easydns/config"
	"easydns/resolver"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"
)

var (
	configPath string
	queryType  string
	strategy   string
	batchMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "easydns [域名...]",
	Short: "多上游 DNS 解析工具",
	Long: `easydns 在多个上游 DNS 服务器（UDP/TCP/DoT/DoH）之间按策略分发查询，
并持续跟踪各上游的健康状况。`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "探测一轮所有上游并打印健康状态",
	RunE:  runHealth,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "在当前目录生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfig("easydns.yaml"); err != nil {
			return err
		}
		fmt.Println("已生成 easydns.yaml")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "easydns.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVarP(&strategy, "strategy", "s", "", "覆盖配置中的查询策略")
	rootCmd.Flags().StringVarP(&queryType, "type", "t", "A", "记录类型: A, AAAA, CNAME, MX, TXT")
	rootCmd.Flags().BoolVarP(&batchMode, "batch", "b", false, "批量模式解析所有域名的 A 记录")
	rootCmd.AddCommand(healthCmd, initCmd)
}

func buildResolver() (*resolver.Resolver, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	return resolver.New(cfg)
}

func runQuery(cmd *cobra.Command, args []string) error {
	r, err := buildResolver()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()

	if batchMode {
		return printBatch(ctx, r, args)
	}

	for _, domain := range args {
		answers, err := resolveByType(ctx, r, domain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", domain, err)
			printEmergencyIfAny(r)
			continue
		}

		if len(answers) == 0 {
			fmt.Printf("%s: 无记录\n", domain)
			continue
		}
		for _, a := range answers {
			fmt.Printf("%s\t%s\n", domain, a)
		}
	}

	return nil
}

func resolveByType(ctx context.Context, r *resolver.Resolver, domain string) ([]string, error) {
	switch strings.ToUpper(queryType) {
	case "A":
		return r.ResolveA(ctx, domain)
	case "AAAA":
		return r.ResolveAAAA(ctx, domain)
	case "CNAME":
		return r.ResolveCNAME(ctx, domain)
	case "MX":
		return r.ResolveMX(ctx, domain)
	case "TXT":
		return r.ResolveTXT(ctx, domain)
	default:
		qtype, ok := dns.StringToType[strings.ToUpper(queryType)]
		if !ok {
			return nil, fmt.Errorf("不支持的记录类型: %s", queryType)
		}
		records, err := r.Resolve(ctx, domain, qtype)
		if err != nil {
			return nil, err
		}
		var result []string
		for _, rr := range records {
			result = append(result, rr.String())
		}
		return result, nil
	}
}

func printBatch(ctx context.Context, r *resolver.Resolver, domains []string) error {
	start := time.Now()
	results := r.BatchResolve(ctx, domains)

	okCount := 0
	for _, res := range results {
		if res.IsOk() {
			okCount++
			fmt.Printf("%s\t%s\n", res.Domain(), strings.Join(res.Unwrap(), ", "))
		} else {
			fmt.Printf("%s\t失败: %v\n", res.Domain(), res.UnwrapErr())
		}
	}

	fmt.Printf("\n共 %d 个域名, 成功 %d 个, 耗时 %v\n", len(results), okCount, time.Since(start))
	printEmergencyIfAny(r)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	r, err := buildResolver()
	if err != nil {
		return err
	}
	defer r.Close()

	// 等一个探测周期之内的首轮结果不可靠，直接解析一个域名预热健康表
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.ResolveA(ctx, "www.gstatic.com")

	for _, snap := range r.HealthSnapshots() {
		status := "✅ 健康"
		if !snap.Healthy {
			status = "❌ 不健康"
		}
		fmt.Printf("%-20s %-40s %s 延迟=%v 成功=%d 失败=%d\n",
			snap.Name, snap.Address, status, snap.Latency.Round(time.Millisecond),
			snap.TotalSuccesses, snap.TotalFailures)
	}

	return nil
}

func printEmergencyIfAny(r *resolver.Resolver) {
	info := r.GetEmergencyResponseInfo()
	if !info.AllUpstreamsFailed {
		return
	}

	fmt.Fprintf(os.Stderr, "\n🚨 %s\n", info.Message)
	for _, f := range info.FailedUpstreams {
		fmt.Fprintf(os.Stderr, "  - %s (%s): 连续失败 %d 次, 原因: %s\n",
			f.Name, f.Address, f.ConsecutiveFailures, f.Reason)
	}
	if info.LastWorkingServer != "" {
		fmt.Fprintf(os.Stderr, "  最近可用过的上游: %s\n", info.LastWorkingServer)
	}
	if info.System != nil {
		fmt.Fprintf(os.Stderr, "  本机状态: 内存使用 %.1f%%, 负载 %.2f\n",
			info.System.MemoryUsedPercent, info.System.Load1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
