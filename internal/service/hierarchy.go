package service

import "storefront_sync/pkg/erpnext"

// SortItemGroupsByHierarchy 对分组做父先子后的拓扑排序
// storefront_categories.parent_id 是自引用外键，批量写入前必须保证
// 父行排在子行之前
//
// 父分组不在本批次内、或为根哨兵（All Item Groups）的记录视为根，
// 从所有根开始 BFS。遍历未触达的记录（悬空父引用、成环等畸形输入）
// 兜底追加到末尾，保证输入记录在输出中恰好出现一次；真正的环仍然
// 无法保证相对顺序，属于已知边界
func SortItemGroupsByHierarchy(groups []erpnext.ItemGroup) []erpnext.ItemGroup {
	inBatch := make(map[string]bool, len(groups))
	for _, g := range groups {
		inBatch[g.Name] = true
	}

	children := make(map[string][]erpnext.ItemGroup)
	var roots []erpnext.ItemGroup
	for _, g := range groups {
		parent := g.ParentItemGroup
		if parent == "" || parent == erpnext.ItemGroupRoot || !inBatch[parent] {
			roots = append(roots, g)
			continue
		}
		children[parent] = append(children[parent], g)
	}

	sorted := make([]erpnext.ItemGroup, 0, len(groups))
	visited := make(map[string]bool, len(groups))

	queue := roots
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if visited[g.Name] {
			continue
		}
		visited[g.Name] = true
		sorted = append(sorted, g)
		queue = append(queue, children[g.Name]...)
	}

	// 兜底：没被遍历到的记录追加在最后
	for _, g := range groups {
		if !visited[g.Name] {
			sorted = append(sorted, g)
		}
	}

	return sorted
}
